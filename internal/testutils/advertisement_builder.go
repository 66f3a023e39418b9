package testutils

import (
	"context"
	"sync"

	"github.com/srg/blradar/internal/adv"
	"github.com/srg/blradar/internal/device"
	"github.com/srg/blradar/internal/discovery"
)

// FakeAdvertisement is a static device.Advertisement for tests.
type FakeAdvertisement struct {
	Name        string
	Address     string
	Rssi        int
	ServiceIDs  []string
	Manufacture []byte
	SvcData     []struct {
		UUID string
		Data []byte
	}
	TxPower     int
	Connectible bool
	Payload     []byte
}

func (a *FakeAdvertisement) LocalName() string        { return a.Name }
func (a *FakeAdvertisement) ManufacturerData() []byte { return a.Manufacture }
func (a *FakeAdvertisement) Services() []string       { return a.ServiceIDs }
func (a *FakeAdvertisement) TxPowerLevel() int        { return a.TxPower }
func (a *FakeAdvertisement) Connectable() bool        { return a.Connectible }
func (a *FakeAdvertisement) RSSI() int                { return a.Rssi }
func (a *FakeAdvertisement) Addr() string             { return a.Address }
func (a *FakeAdvertisement) Raw() []byte              { return a.Payload }

func (a *FakeAdvertisement) ServiceData() []struct {
	UUID string
	Data []byte
} {
	return a.SvcData
}

// AdvertisementBuilder builds fake BLE advertisements for testing.
// The raw payload is assembled from the configured fields unless set
// explicitly with WithRaw.
type AdvertisementBuilder struct {
	adv    FakeAdvertisement
	rawSet bool
}

// NewAdvertisementBuilder creates a new AdvertisementBuilder with default values.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{adv: FakeAdvertisement{Rssi: -50, Connectible: true}}
}

// WithName sets the local name for the advertisement.
func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.adv.Name = name
	return b
}

// WithAddress sets the device address for the advertisement.
func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.adv.Address = addr
	return b
}

// WithRSSI sets the signal strength for the advertisement.
func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.adv.Rssi = rssi
	return b
}

// WithServices adds service UUIDs to the advertisement.
func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	b.adv.ServiceIDs = append(b.adv.ServiceIDs, uuids...)
	return b
}

// WithServiceData adds service-specific data for the given service UUID.
func (b *AdvertisementBuilder) WithServiceData(uuid string, data []byte) *AdvertisementBuilder {
	b.adv.SvcData = append(b.adv.SvcData, struct {
		UUID string
		Data []byte
	}{UUID: uuid, Data: data})
	return b
}

// WithManufacturerData sets the manufacturer-specific data, company id included.
func (b *AdvertisementBuilder) WithManufacturerData(data []byte) *AdvertisementBuilder {
	b.adv.Manufacture = data
	return b
}

// WithAirDrop sets Apple manufacturer data in the AirDrop discovery format
// carrying the given fingerprints (missing ones are zero).
func (b *AdvertisementBuilder) WithAirDrop(fingerprints ...discovery.Fingerprint) *AdvertisementBuilder {
	return b.WithManufacturerData(AirDropFrame(fingerprints...))
}

// WithTxPower sets the transmission power level.
func (b *AdvertisementBuilder) WithTxPower(power int) *AdvertisementBuilder {
	b.adv.TxPower = power
	return b
}

// WithConnectable sets whether the device accepts connections.
func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.adv.Connectible = c
	return b
}

// WithRaw sets the raw payload verbatim.
func (b *AdvertisementBuilder) WithRaw(raw []byte) *AdvertisementBuilder {
	b.adv.Payload = raw
	b.rawSet = true
	return b
}

// Build creates the FakeAdvertisement.
func (b *AdvertisementBuilder) Build() *FakeAdvertisement {
	a := b.adv
	if !b.rawSet {
		records := []adv.Record{{Type: adv.TypeFlags, Data: []byte{0x06}}}
		if len(a.Manufacture) > 0 {
			records = append(records, adv.Record{Type: adv.TypeManufacturerData, Data: a.Manufacture})
		}
		if a.Name != "" {
			records = append(records, adv.Record{Type: adv.TypeCompleteName, Data: []byte(a.Name)})
		}
		a.Payload = adv.Encode(records)
	}
	return &a
}

// AirDropFrame returns Apple manufacturer data in the AirDrop discovery
// format with fingerprints at data offsets 13..20.
func AirDropFrame(fingerprints ...discovery.Fingerprint) []byte {
	data := make([]byte, discovery.FrameSize)
	data[0], data[1] = 0x4C, 0x00
	data[2] = discovery.SubtypeMarker
	data[3] = discovery.PayloadSize - 1
	data[12] = 0x01
	for i, fp := range fingerprints {
		if i == 4 {
			break
		}
		off := discovery.PayloadOffset + 10 + 2*i
		data[off] = byte(fp >> 8)
		data[off+1] = byte(fp)
	}
	return data
}

// FakeScanningDevice replays advertisements to every Scan call and then
// blocks until the context ends.
type FakeScanningDevice struct {
	mu     sync.Mutex
	ads    []device.Advertisement
	err    error
	scans  int
	Signal chan struct{} // closed after the first replay, if non-nil
}

// NewFakeScanningDevice creates a FakeScanningDevice.
func NewFakeScanningDevice(ads ...device.Advertisement) *FakeScanningDevice {
	return &FakeScanningDevice{ads: ads}
}

// FailWith makes subsequent scans return err immediately.
func (d *FakeScanningDevice) FailWith(err error) *FakeScanningDevice {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
	return d
}

// Scans returns how many times Scan was called.
func (d *FakeScanningDevice) Scans() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scans
}

// Scan implements device.ScanningDevice
func (d *FakeScanningDevice) Scan(ctx context.Context, _ bool, handler func(device.Advertisement)) error {
	d.mu.Lock()
	d.scans++
	ads, err, first := d.ads, d.err, d.scans == 1
	d.mu.Unlock()

	if err != nil {
		return err
	}
	for _, a := range ads {
		handler(a)
	}
	if first && d.Signal != nil {
		close(d.Signal)
	}
	<-ctx.Done()
	return ctx.Err()
}
