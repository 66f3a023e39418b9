package device

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/srg/blradar/internal/discovery"
	"github.com/srg/blradar/internal/geo"
	"github.com/srg/blradar/internal/vendor"
)

// NotFoundError represents an error when a tracked resource is not found
type NotFoundError struct {
	Resource string // "device", "profile"
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// Operation errors
var (
	ErrBluetoothOff = errors.New("bluetooth is turned off")
	ErrUnsupported  = errors.New("unsupported")
)

// ScanningDevice represents a BLE device capable of scanning for advertisements
type ScanningDevice interface {
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
}

// Advertisement is a single received advertising report.
type Advertisement interface {
	LocalName() string
	ManufacturerData() []byte
	ServiceData() []struct {
		UUID string
		Data []byte
	}

	Services() []string
	TxPowerLevel() int
	Connectable() bool

	RSSI() int
	Addr() string

	// Raw returns the advertising payload followed by the scan response, in
	// AD structure format.
	Raw() []byte
}

// LocationPoint is a user position recorded while a device was in range.
type LocationPoint struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	TimestampMs int64   `json:"timestampMs"`
}

// Point drops the timestamp.
func (p LocationPoint) Point() geo.Point {
	return geo.Point{Lat: p.Lat, Lng: p.Lng}
}

// Record is the tracked state of one device.
//
// Records are snapshots: the store hands out copies and evaluation never
// mutates stored state directly.
type Record struct {
	Address     string  `json:"address"`
	Name        *string `json:"name,omitempty"`
	RSSI        int     `json:"rssi"`
	FirstSeenMs int64   `json:"firstSeenMs"`
	LastSeenMs  int64   `json:"lastSeenMs"`
	DetectCount int     `json:"detectCount"`
	Favorite    bool    `json:"favorite"`

	Tags       map[string]struct{} `json:"-"`
	VendorInfo *vendor.Info        `json:"vendorInfo,omitempty"`

	// Sightings records when each discovery fingerprint was first and last seen.
	Sightings map[discovery.Fingerprint]discovery.Sighting `json:"-"`

	LastFollowingDetectionMs *int64 `json:"lastFollowingDetectionMs,omitempty"`
}

// NewRecord creates a record for a device first seen at nowMs.
func NewRecord(address string, nowMs int64) *Record {
	return &Record{
		Address:     address,
		FirstSeenMs: nowMs,
		LastSeenMs:  nowMs,
	}
}

// HasTag reports whether the device carries tag.
func (r *Record) HasTag(tag string) bool {
	_, ok := r.Tags[tag]
	return ok
}

// AddTag attaches tag to the device.
func (r *Record) AddTag(tag string) {
	if r.Tags == nil {
		r.Tags = make(map[string]struct{})
	}
	r.Tags[tag] = struct{}{}
}

// TagList returns the tags in sorted order.
func (r *Record) TagList() []string {
	tags := make([]string, 0, len(r.Tags))
	for t := range r.Tags {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// DisplayName returns the advertised name or the address.
func (r *Record) DisplayName() string {
	if r.Name != nil && *r.Name != "" {
		return *r.Name
	}
	return r.Address
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Name != nil {
		name := *r.Name
		c.Name = &name
	}
	if r.Tags != nil {
		c.Tags = make(map[string]struct{}, len(r.Tags))
		for t := range r.Tags {
			c.Tags[t] = struct{}{}
		}
	}
	if r.VendorInfo != nil {
		vi := *r.VendorInfo
		vi.DiscoveryFingerprints = append([]discovery.Fingerprint(nil), r.VendorInfo.DiscoveryFingerprints...)
		c.VendorInfo = &vi
	}
	if r.Sightings != nil {
		c.Sightings = make(map[discovery.Fingerprint]discovery.Sighting, len(r.Sightings))
		for fp, s := range r.Sightings {
			c.Sightings[fp] = s
		}
	}
	if r.LastFollowingDetectionMs != nil {
		ts := *r.LastFollowingDetectionMs
		c.LastFollowingDetectionMs = &ts
	}
	return &c
}
