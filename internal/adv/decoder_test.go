package adv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		raw      []byte
		expected []Record
	}{
		{
			name:     "empty payload",
			raw:      nil,
			expected: nil,
		},
		{
			name: "flags and complete name",
			raw:  []byte{0x02, 0x01, 0x06, 0x05, 0x09, 'b', 'l', 'i', 'm'},
			expected: []Record{
				{Type: TypeFlags, Data: []byte{0x06}},
				{Type: TypeCompleteName, Data: []byte("blim")},
			},
		},
		{
			name: "type-only record has empty data",
			raw:  []byte{0x01, 0x0A},
			expected: []Record{
				{Type: TypeTxPower, Data: []byte{}},
			},
		},
		{
			name: "truncated trailing record is dropped",
			raw:  []byte{0x02, 0x01, 0x06, 0x05, 0xFF, 0x4C, 0x00},
			expected: []Record{
				{Type: TypeFlags, Data: []byte{0x06}},
			},
		},
		{
			name: "dangling length byte is dropped",
			raw:  []byte{0x02, 0x01, 0x06, 0x03},
			expected: []Record{
				{Type: TypeFlags, Data: []byte{0x06}},
			},
		},
		{
			name: "zero length terminates payload",
			raw:  []byte{0x02, 0x01, 0x06, 0x00, 0x00, 0x02, 0x09, 'x'},
			expected: []Record{
				{Type: TypeFlags, Data: []byte{0x06}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Decode(tt.raw))
		})
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	records := []Record{
		{Type: TypeFlags, Data: []byte{0x1A}},
		{Type: TypeAllUUID16, Data: []byte{0x0F, 0x18, 0x0A, 0x18}},
		{Type: TypeManufacturerData, Data: []byte{0x4C, 0x00, 0x10, 0x05, 0x01, 0x98, 0x2B, 0x7F, 0x11}},
		{Type: TypeCompleteName, Data: []byte("Test Device")},
	}
	raw := Encode(records)
	require.Equal(t, records, Decode(raw), "decode MUST recover the encoded records")

	last := records[len(records)-1]
	declared := len(last.Data) + 1
	for extra := 1; extra < declared; extra++ {
		// A further record that only has `extra` of its declared bytes.
		padded := append(append([]byte{}, raw...), byte(declared))
		padded = append(padded, make([]byte, extra-1)...)
		assert.Equal(t, records, Decode(padded), "partial trailing record MUST NOT be emitted (extra=%d)", extra)
	}
}

func TestEncode_SkipsOversizedRecords(t *testing.T) {
	raw := Encode([]Record{
		{Type: TypeManufacturerData, Data: make([]byte, 0xFF)},
		{Type: TypeFlags, Data: []byte{0x06}},
	})
	assert.Equal(t, []byte{0x02, 0x01, 0x06}, raw)
}

func TestFind(t *testing.T) {
	records := Decode([]byte{0x02, 0x01, 0x06, 0x03, 0xFF, 0x4C, 0x00, 0x03, 0xFF, 0x06, 0x00})

	rec, ok := Find(records, TypeManufacturerData)
	require.True(t, ok)
	assert.Equal(t, []byte{0x4C, 0x00}, rec.Data, "MUST return the first matching record")

	_, ok = Find(records, TypeCompleteName)
	assert.False(t, ok)
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "Manufacturer Specific Data", TypeName(TypeManufacturerData))
	assert.Equal(t, "Unknown (0x42)", TypeName(0x42))
}
