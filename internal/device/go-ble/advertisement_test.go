package goble

import (
	"errors"
	"testing"

	"github.com/srg/blradar/internal/adv"
	"github.com/srg/blradar/internal/device"
	"github.com/srg/blradar/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesize(t *testing.T) {
	a := testutils.NewAdvertisementBuilder().
		WithName("Beacon").
		WithServices("180F", "6e400001-b5a3-f393-e0a9-e50e24dcca9e").
		WithServiceData("180F", []byte{0x64}).
		WithManufacturerData([]byte{0x4C, 0x00, 0x10, 0x05}).
		Build()

	records := adv.Decode(Synthesize(a))
	require.Len(t, records, 5)

	assert.Equal(t, adv.Record{Type: adv.TypeAllUUID16, Data: []byte{0x0F, 0x18}}, records[0])
	assert.Equal(t, adv.TypeAllUUID128, records[1].Type)
	assert.Equal(t, []byte{0x9E, 0xCA, 0xDC, 0x24}, records[1].Data[:4], "128-bit UUIDs MUST be little-endian on air")
	assert.Equal(t, adv.Record{Type: adv.TypeServiceData16, Data: []byte{0x0F, 0x18, 0x64}}, records[2])
	assert.Equal(t, adv.Record{Type: adv.TypeManufacturerData, Data: []byte{0x4C, 0x00, 0x10, 0x05}}, records[3])
	assert.Equal(t, adv.Record{Type: adv.TypeCompleteName, Data: []byte("Beacon")}, records[4])
}

func TestSynthesize_Empty(t *testing.T) {
	assert.Empty(t, Synthesize(&testutils.FakeAdvertisement{}))
}

func TestNormalizeError(t *testing.T) {
	assert.Nil(t, NormalizeError(nil))

	err := NormalizeError(errors.New("central manager has invalid state: have=4 want=5: is Bluetooth turned on?"))
	assert.ErrorIs(t, err, device.ErrBluetoothOff)

	err = NormalizeError(errors.New("can't init hci: no devices available"))
	assert.ErrorIs(t, err, device.ErrUnsupported)

	orig := errors.New("something else")
	assert.Same(t, orig, NormalizeError(orig))
}
