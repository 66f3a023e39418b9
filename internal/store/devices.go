// Package store keeps tracked devices and location history in memory.
package store

import (
	"context"
	"sort"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/blradar/internal/device"
)

// DeviceStore holds device records keyed by address.
//
// Stored records are never mutated in place: every update stores a fresh
// copy, so concurrent writers to the same address are last-write-wins.
type DeviceStore struct {
	devices *hashmap.Map[string, *device.Record]
	logger  *logrus.Logger
}

// NewDeviceStore creates an empty store.
func NewDeviceStore(logger *logrus.Logger) *DeviceStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &DeviceStore{
		devices: hashmap.New[string, *device.Record](),
		logger:  logger,
	}
}

// Get returns a copy of the record for address.
func (s *DeviceStore) Get(address string) (*device.Record, error) {
	rec, ok := s.devices.Get(address)
	if !ok {
		return nil, &device.NotFoundError{Resource: "device", ID: address}
	}
	return rec.Clone(), nil
}

// Lookup is Get without the error, for callers that treat absence as new.
func (s *DeviceStore) Lookup(address string) (*device.Record, bool) {
	rec, ok := s.devices.Get(address)
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Upsert stores a copy of rec.
func (s *DeviceStore) Upsert(rec *device.Record) {
	s.devices.Set(rec.Address, rec.Clone())
}

// All returns copies of every record, ordered by address.
func (s *DeviceStore) All() []*device.Record {
	out := make([]*device.Record, 0, s.devices.Len())
	s.devices.Range(func(_ string, rec *device.Record) bool {
		out = append(out, rec.Clone())
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Len returns the number of tracked devices.
func (s *DeviceStore) Len() int {
	return s.devices.Len()
}

// RecordFollowingDetection stores the time of a following detection.
func (s *DeviceStore) RecordFollowingDetection(ctx context.Context, address string, atMs int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(address, func(rec *device.Record) {
		rec.LastFollowingDetectionMs = &atMs
	})
}

// SetFavorite marks or unmarks a device as favorite.
func (s *DeviceStore) SetFavorite(address string, favorite bool) error {
	return s.update(address, func(rec *device.Record) {
		rec.Favorite = favorite
	})
}

// AddTag attaches a tag to a device.
func (s *DeviceStore) AddTag(address, tag string) error {
	return s.update(address, func(rec *device.Record) {
		rec.AddTag(tag)
	})
}

func (s *DeviceStore) update(address string, fn func(rec *device.Record)) error {
	rec, err := s.Get(address)
	if err != nil {
		return err
	}
	fn(rec)
	s.devices.Set(address, rec)

	s.logger.WithField("address", address).Debug("Device updated")
	return nil
}
