// Package scanner collects BLE advertisements over a scan window and turns
// them into observations for the evaluation engine.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/blradar/internal/device"
	"github.com/srg/blradar/internal/devicefactory"
	"github.com/srg/blradar/internal/engine"
	"github.com/srg/blradar/internal/ringchan"
)

// ProgressCallback is called when the scan phase changes
type ProgressCallback func(phase string)

// DeviceEventType marks if the device was newly discovered or updated
type DeviceEventType int

const (
	EventNew DeviceEventType = iota
	EventUpdated
)

// DeviceEvent is published for every accepted advertisement.
type DeviceEvent struct {
	Type        DeviceEventType
	Observation engine.Observation
}

// ScanOptions configures scanning behavior
type ScanOptions struct {
	Duration        time.Duration
	DuplicateFilter bool
	ServiceUUIDs    []string
	AllowList       []string
	BlockList       []string
}

// DefaultScanOptions returns default scanning options
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Duration:        10 * time.Second,
		DuplicateFilter: true,
	}
}

// Scanner runs scan windows on the BLE device.
type Scanner struct {
	observations *hashmap.Map[string, engine.Observation]
	events       *ringchan.RingChannel[DeviceEvent]
	logger       *logrus.Logger

	opts     *ScanOptions
	services map[string]struct{}
}

// NewScanner creates a new BLE scanner
func NewScanner(logger *logrus.Logger) (*Scanner, error) {
	if logger == nil {
		logger = logrus.New()
	}

	return &Scanner{
		events: ringchan.New[DeviceEvent](100),
		logger: logger,
	}, nil
}

// Scan listens for one window and returns the latest observation of every
// accepted device, ordered by address. The end of the window is not an
// error; cancellation of ctx is.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions, progressCallback ProgressCallback) ([]engine.Observation, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	if progressCallback == nil {
		progressCallback = func(string) {}
	}

	services := make(map[string]struct{}, len(opts.ServiceUUIDs))
	if len(opts.ServiceUUIDs) > 0 {
		normalized, err := device.ValidateUUID(opts.ServiceUUIDs...)
		if err != nil {
			return nil, fmt.Errorf("invalid service filter: %w", err)
		}
		for _, u := range normalized {
			services[u] = struct{}{}
		}
	}

	s.observations = hashmap.New[string, engine.Observation]()
	s.opts = opts
	s.services = services
	defer func() {
		s.opts = nil
	}()

	dev, err := devicefactory.DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}

	window := ctx
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		window, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	s.logger.WithField("duration", opts.Duration).Info("Starting BLE scan...")
	progressCallback("Scanning")

	err = dev.Scan(window, !opts.DuplicateFilter, s.handleAdvertisement)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	s.logger.WithField("device_count", s.observations.Len()).Info("BLE scan completed")
	progressCallback("Processing results")

	out := make([]engine.Observation, 0, s.observations.Len())
	s.observations.Range(func(_ string, obs engine.Observation) bool {
		out = append(out, obs)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

// handleAdvertisement records the latest advertisement of an accepted device.
func (s *Scanner) handleAdvertisement(a device.Advertisement) {
	addr := a.Addr()
	_, existing := s.observations.Get(addr)
	if !existing && !s.shouldInclude(a) {
		return
	}

	obs := engine.Observation{
		Address:  addr,
		Name:     a.LocalName(),
		RSSI:     a.RSSI(),
		Raw:      a.Raw(),
		SeenAtMs: time.Now().UnixMilli(),
	}
	s.observations.Set(addr, obs)

	event := DeviceEvent{Type: EventUpdated, Observation: obs}
	if !existing {
		event.Type = EventNew
		s.logger.WithFields(logrus.Fields{
			"device":  obs.Name,
			"address": addr,
			"rssi":    obs.RSSI,
		}).Info("Discovered new device")
	}
	s.events.Send(event)
}

// shouldInclude applies the allow, block and service filters.
func (s *Scanner) shouldInclude(a device.Advertisement) bool {
	addr := a.Addr()

	for _, blocked := range s.opts.BlockList {
		if addr == blocked {
			return false
		}
	}

	if len(s.opts.AllowList) > 0 {
		allowed := false
		for _, a := range s.opts.AllowList {
			if addr == a {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if len(s.services) > 0 {
		for _, u := range a.Services() {
			if _, ok := s.services[device.NormalizeUUID(u)]; ok {
				return true
			}
		}
		return false
	}

	return true
}

// Events return a read-only channel of device events
func (s *Scanner) Events() <-chan DeviceEvent {
	return s.events.C()
}
