package goble

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/go-ble/ble"
	"github.com/srg/blradar/internal/adv"
	"github.com/srg/blradar/internal/device"
)

// rawPayload is implemented by advertisements that keep the PDU bytes (the
// Linux HCI backend).
type rawPayload interface {
	Data() []byte
	ScanResponse() []byte
}

// BLEAdvertisement wraps ble.Advertisement to implement device.Advertisement interface
type BLEAdvertisement struct {
	adv ble.Advertisement
}

// NewBLEAdvertisement creates a new BLEAdvertisement wrapper
func NewBLEAdvertisement(adv ble.Advertisement) device.Advertisement {
	return &BLEAdvertisement{adv: adv}
}

func (a *BLEAdvertisement) LocalName() string        { return a.adv.LocalName() }
func (a *BLEAdvertisement) ManufacturerData() []byte { return a.adv.ManufacturerData() }
func (a *BLEAdvertisement) TxPowerLevel() int        { return int(a.adv.TxPowerLevel()) }
func (a *BLEAdvertisement) Connectable() bool        { return a.adv.Connectable() }
func (a *BLEAdvertisement) RSSI() int                { return a.adv.RSSI() }
func (a *BLEAdvertisement) Addr() string             { return a.adv.Addr().String() }

func (a *BLEAdvertisement) ServiceData() []struct {
	UUID string
	Data []byte
} {
	bleServiceData := a.adv.ServiceData()
	result := make([]struct {
		UUID string
		Data []byte
	}, len(bleServiceData))
	for i, sd := range bleServiceData {
		result[i].UUID = sd.UUID.String()
		result[i].Data = sd.Data
	}
	return result
}

func (a *BLEAdvertisement) Services() []string {
	bleServices := a.adv.Services()
	result := make([]string, len(bleServices))
	for i, svc := range bleServices {
		result[i] = svc.String()
	}
	return result
}

// Raw returns the received payload when the backend keeps it, and otherwise
// re-encodes the parsed fields. The CoreBluetooth backend only exposes parsed
// fields, so on macOS the original record order is not preserved.
func (a *BLEAdvertisement) Raw() []byte {
	if rp, ok := a.adv.(rawPayload); ok {
		data := rp.Data()
		if len(data) > 0 {
			return append(append([]byte{}, data...), rp.ScanResponse()...)
		}
	}
	return Synthesize(a)
}

// Unwrap returns the underlying ble.Advertisement for internal use within go-ble package
func (a *BLEAdvertisement) Unwrap() ble.Advertisement {
	return a.adv
}

// Synthesize builds an AD payload from the parsed fields of an advertisement.
func Synthesize(a device.Advertisement) []byte {
	var records []adv.Record

	var uuid16, uuid128 []byte
	for _, s := range a.Services() {
		u, err := hex.DecodeString(device.NormalizeUUID(s))
		if err != nil {
			continue
		}
		reverse(u)
		switch len(u) {
		case 2:
			uuid16 = append(uuid16, u...)
		case 16:
			uuid128 = append(uuid128, u...)
		}
	}
	if len(uuid16) > 0 {
		records = append(records, adv.Record{Type: adv.TypeAllUUID16, Data: uuid16})
	}
	if len(uuid128) > 0 {
		records = append(records, adv.Record{Type: adv.TypeAllUUID128, Data: uuid128})
	}

	for _, sd := range a.ServiceData() {
		u, err := hex.DecodeString(device.NormalizeUUID(sd.UUID))
		if err != nil || len(u) != 2 {
			continue
		}
		data := make([]byte, 2, 2+len(sd.Data))
		binary.LittleEndian.PutUint16(data, binary.BigEndian.Uint16(u))
		records = append(records, adv.Record{Type: adv.TypeServiceData16, Data: append(data, sd.Data...)})
	}

	if md := a.ManufacturerData(); len(md) > 0 {
		records = append(records, adv.Record{Type: adv.TypeManufacturerData, Data: md})
	}
	if name := a.LocalName(); name != "" {
		records = append(records, adv.Record{Type: adv.TypeCompleteName, Data: []byte(name)})
	}

	return adv.Encode(records)
}

// reverse converts between the display (big-endian) and on-air
// (little-endian) UUID byte order in place.
func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
