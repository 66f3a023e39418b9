package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/srg/blradar/internal/device"
)

// DefaultRetention is how long location points are kept.
const DefaultRetention = 24 * time.Hour

// LocationHistory records where the user was whenever a device was seen.
type LocationHistory struct {
	mu        sync.RWMutex
	points    map[string][]device.LocationPoint
	current   *device.LocationPoint
	retention int64
}

// NewLocationHistory creates a history that forgets points older than
// retention relative to the newest point of each device. A non-positive
// retention keeps everything.
func NewLocationHistory(retention time.Duration) *LocationHistory {
	return &LocationHistory{
		points:    make(map[string][]device.LocationPoint),
		retention: retention.Milliseconds(),
	}
}

// Append adds a point for address, keeping the series ordered by time.
func (h *LocationHistory) Append(address string, p device.LocationPoint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	series := h.points[address]
	i := sort.Search(len(series), func(i int) bool { return series[i].TimestampMs > p.TimestampMs })
	series = append(series, device.LocationPoint{})
	copy(series[i+1:], series[i:])
	series[i] = p

	if h.retention > 0 {
		cutoff := series[len(series)-1].TimestampMs - h.retention
		drop := sort.Search(len(series), func(i int) bool { return series[i].TimestampMs >= cutoff })
		series = append(series[:0], series[drop:]...)
	}
	h.points[address] = series
}

// Query returns the points of address within [fromMs, toMs], oldest first.
func (h *LocationHistory) Query(ctx context.Context, address string, fromMs, toMs int64) ([]device.LocationPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	series := h.points[address]
	lo := sort.Search(len(series), func(i int) bool { return series[i].TimestampMs >= fromMs })
	hi := sort.Search(len(series), func(i int) bool { return series[i].TimestampMs > toMs })
	if lo >= hi {
		return nil, nil
	}
	out := make([]device.LocationPoint, hi-lo)
	copy(out, series[lo:hi])
	return out, nil
}

// Len returns the number of points stored for address.
func (h *LocationHistory) Len(address string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.points[address])
}

// SetCurrent updates the user's current location.
func (h *LocationHistory) SetCurrent(p device.LocationPoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = &p
}

// CurrentLocation returns the user's location, or nil if unknown.
func (h *LocationHistory) CurrentLocation(ctx context.Context) (*device.LocationPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return nil, nil
	}
	p := *h.current
	return &p, nil
}
