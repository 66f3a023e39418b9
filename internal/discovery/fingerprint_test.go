package discovery

import (
	"crypto/sha256"
	"testing"

	"github.com/srg/blradar/internal/adv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// airDropFrame is Apple manufacturer data in the AirDrop discovery format with
// hashes 0xA1B2, 0xC3D4, 0xE5F6, 0x0718 at data offsets 13..20.
var airDropFrame = []byte{
	// company id, AirDrop type, length
	0x4C, 0x00, 0x05, 0x12,
	// zero padding, version
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01,
	// Apple ID, phone, email, email2
	0xA1, 0xB2, 0xC3, 0xD4, 0xE5, 0xF6, 0x07, 0x18,
	0x00,
}

func manufacturerRecords(data []byte) []adv.Record {
	return []adv.Record{
		{Type: adv.TypeFlags, Data: []byte{0x1A}},
		{Type: adv.TypeManufacturerData, Data: data},
	}
}

func TestExtract(t *testing.T) {
	require.Len(t, airDropFrame, FrameSize)

	fps := Extract(manufacturerRecords(airDropFrame))
	assert.Equal(t, []Fingerprint{0xA1B2, 0xC3D4, 0xE5F6, 0x0718}, fps)
}

func TestExtract_OffsetsArePayloadRelative(t *testing.T) {
	data := make([]byte, FrameSize)
	data[0], data[1], data[2] = 0x4C, 0x00, SubtypeMarker
	for i := PayloadOffset; i < FrameSize; i++ {
		data[i] = byte(i)
	}

	fps := Extract(manufacturerRecords(data))
	require.Len(t, fps, 4)
	for i, fp := range fps {
		high := data[PayloadOffset+10+2*i]
		low := data[PayloadOffset+11+2*i]
		assert.Equal(t, Fingerprint(uint16(high)<<8|uint16(low)), fp, "fingerprint %d", i)
	}
}

func TestExtract_NotDiscoveryFrame(t *testing.T) {
	wrongMarker := append([]byte{}, airDropFrame...)
	wrongMarker[2] = 0x10

	tests := []struct {
		name    string
		records []adv.Record
	}{
		{name: "no records", records: nil},
		{name: "no manufacturer data", records: []adv.Record{{Type: adv.TypeCompleteName, Data: []byte("x")}}},
		{name: "short frame", records: manufacturerRecords(airDropFrame[:FrameSize-1])},
		{name: "long frame", records: manufacturerRecords(append(append([]byte{}, airDropFrame...), 0x00))},
		{name: "different marker", records: manufacturerRecords(wrongMarker)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, Extract(tt.records))
		})
	}
}

func TestFromContact(t *testing.T) {
	sum := sha256.Sum256([]byte("+14155550123"))
	expected := Fingerprint(uint16(sum[0])<<8 | uint16(sum[1]))

	assert.Equal(t, expected, FromContact("+14155550123"))
	assert.Equal(t, expected, FromContact("  +14155550123\n"), "surrounding whitespace MUST be ignored")
	assert.NotEqual(t, expected, FromContact("+14155550124"))
}

func TestParseFingerprint(t *testing.T) {
	fp, err := ParseFingerprint("0xA1b2")
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(0xA1B2), fp)
	assert.Equal(t, "a1b2", fp.String())

	_, err = ParseFingerprint("a1b")
	assert.Error(t, err)
	_, err = ParseFingerprint("zzzz")
	assert.Error(t, err)
}
