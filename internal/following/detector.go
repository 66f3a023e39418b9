// Package following decides whether a device has been moving with the user.
//
// A device that lingers near one spot accumulates path length from GPS
// jitter but no displacement; one that travels with the user accumulates
// both. Requiring both rules out stationary noise.
package following

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/srg/blradar/internal/device"
	"github.com/srg/blradar/internal/geo"
)

// Default thresholds in meters.
const (
	DefaultMinSegmentMeters      = 300.0
	DefaultMinDisplacementMeters = 300.0
)

// Config holds the distance thresholds.
type Config struct {
	MinSegmentMeters      float64 `yaml:"min_segment_meters" default:"300"`
	MinDisplacementMeters float64 `yaml:"min_displacement_meters" default:"300"`
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		MinSegmentMeters:      DefaultMinSegmentMeters,
		MinDisplacementMeters: DefaultMinDisplacementMeters,
	}
}

// History provides the recorded locations of a device.
type History interface {
	Query(ctx context.Context, address string, fromMs, toMs int64) ([]device.LocationPoint, error)
}

// Detector evaluates location history against the thresholds.
type Detector struct {
	cfg     Config
	history History
	logger  *logrus.Logger
}

// NewDetector creates a Detector.
func NewDetector(cfg Config, history History, logger *logrus.Logger) *Detector {
	if logger == nil {
		logger = logrus.New()
	}
	return &Detector{cfg: cfg, history: history, logger: logger}
}

// Config returns the detector thresholds.
func (d *Detector) Config() Config {
	return d.cfg
}

// IsFollowing reports whether the device at address moved at least the
// configured path length and displacement during the last minDurationMs.
//
// Within detectionIntervalMs of lastDetectionMs it returns false without
// consulting history.
func (d *Detector) IsFollowing(ctx context.Context, address string, minDurationMs, detectionIntervalMs int64, lastDetectionMs *int64, nowMs int64) (bool, error) {
	if lastDetectionMs != nil && nowMs-*lastDetectionMs < detectionIntervalMs {
		return false, nil
	}

	points, err := d.history.Query(ctx, address, nowMs-minDurationMs, nowMs)
	if err != nil {
		return false, fmt.Errorf("failed to query location history for %s: %w", address, err)
	}
	if len(points) < 1 {
		return false, nil
	}

	sorted := make([]device.LocationPoint, 0, len(points))
	for _, p := range points {
		if nowMs-p.TimestampMs <= minDurationMs {
			sorted = append(sorted, p)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimestampMs < sorted[j].TimestampMs
	})
	if len(sorted) < 1 {
		return false, nil
	}

	path := make([]geo.Point, len(sorted))
	for i, p := range sorted {
		path[i] = p.Point()
	}
	pathLength := geo.PathLength(path)
	displacement := geo.Distance(path[0], path[len(path)-1])

	following := pathLength >= d.cfg.MinSegmentMeters && displacement >= d.cfg.MinDisplacementMeters

	d.logger.WithFields(logrus.Fields{
		"address":      address,
		"points":       len(path),
		"path_m":       pathLength,
		"displacement": displacement,
		"following":    following,
	}).Debug("Evaluated following")

	return following, nil
}
