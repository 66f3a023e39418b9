package filter

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/srg/blradar/internal/device"
	"github.com/srg/blradar/internal/discovery"
	"github.com/srg/blradar/internal/following"
	"github.com/srg/blradar/internal/geo"
)

// Context is the evaluator's view of the world outside the device snapshot.
type Context interface {
	// Now returns the evaluation time in Unix milliseconds.
	Now() int64
	// HistoryFor returns the recorded locations of address within [fromMs, toMs].
	HistoryFor(ctx context.Context, address string, fromMs, toMs int64) ([]device.LocationPoint, error)
	// CurrentLocation returns the user's location, or nil when unknown.
	CurrentLocation(ctx context.Context) (*device.LocationPoint, error)
	// RecordFollowingDetection persists a following detection for address.
	RecordFollowingDetection(ctx context.Context, address string, atMs int64) error
}

// Evaluator interprets filter trees against device snapshots.
type Evaluator struct {
	// Following holds the thresholds for IsFollowing leaves.
	Following following.Config
	// ReorderByCost evaluates cheap children of All and Any first.
	ReorderByCost bool

	logger *logrus.Logger
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(cfg following.Config, reorderByCost bool, logger *logrus.Logger) *Evaluator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Evaluator{Following: cfg, ReorderByCost: reorderByCost, logger: logger}
}

// Evaluate reports whether rec satisfies n.
//
// n must be a valid tree (see Validate); a nil or foreign node panics.
// History errors are returned and leave the result undefined. A
// successful IsFollowing detection is written back through fctx and
// also stored on rec, so later leaves of n see the cooldown.
func (e *Evaluator) Evaluate(ctx context.Context, rec *device.Record, n Node, fctx Context) (bool, error) {
	logger := e.logger
	if logger == nil {
		logger = logrus.New()
	}
	p := pass{
		Evaluator: e,
		fctx:      fctx,
		now:       fctx.Now(),
		detector:  following.NewDetector(e.Following, historyFunc(fctx.HistoryFor), logger),
		log:       logger,
	}
	return p.eval(ctx, rec, n)
}

type historyFunc func(ctx context.Context, address string, fromMs, toMs int64) ([]device.LocationPoint, error)

func (f historyFunc) Query(ctx context.Context, address string, fromMs, toMs int64) ([]device.LocationPoint, error) {
	return f(ctx, address, fromMs, toMs)
}

// pass is a single Evaluate call; now is fixed for its duration.
type pass struct {
	*Evaluator
	fctx     Context
	now      int64
	detector *following.Detector
	log      *logrus.Logger
}

func (p *pass) eval(ctx context.Context, rec *device.Record, n Node) (bool, error) {
	switch v := n.(type) {
	case Name:
		if rec.Name == nil {
			return false, nil
		}
		if v.CaseSensitive {
			return strings.Contains(*rec.Name, v.Substring), nil
		}
		return strings.Contains(strings.ToLower(*rec.Name), strings.ToLower(v.Substring)), nil

	case Address:
		return rec.Address == v.Address, nil

	case Manufacturer:
		return rec.VendorInfo != nil && rec.VendorInfo.ID == v.VendorID, nil

	case IsFavorite:
		return rec.Favorite == v.Favorite, nil

	case MinLostTime:
		return p.now-rec.LastSeenMs >= v.ThresholdMs, nil

	case FirstDetectionInterval:
		return inInterval(rec.FirstSeenMs, v.FromMs, v.ToMs), nil

	case LastDetectionInterval:
		return inInterval(rec.LastSeenMs, v.FromMs, v.ToMs), nil

	case AirdropContact:
		return p.airdropContact(rec, v), nil

	case IsFollowing:
		return p.isFollowing(ctx, rec, v)

	case DeviceLocation:
		from, to := bounds(v.FromMs, v.ToMs)
		points, err := p.fctx.HistoryFor(ctx, rec.Address, from, to)
		if err != nil {
			return false, fmt.Errorf("failed to load location history for %s: %w", rec.Address, err)
		}
		target := geo.Point{Lat: v.Lat, Lng: v.Lng}
		for _, pt := range points {
			if pt.TimestampMs >= from && pt.TimestampMs <= to && geo.Within(pt.Point(), target, v.RadiusMeters) {
				return true, nil
			}
		}
		return false, nil

	case UserLocation:
		loc, err := p.fctx.CurrentLocation(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to get current location: %w", err)
		}
		if loc == nil {
			return v.Default, nil
		}
		return geo.Within(loc.Point(), geo.Point{Lat: v.Lat, Lng: v.Lng}, v.RadiusMeters), nil

	case Tag:
		return rec.HasTag(v.Tag), nil

	case All:
		for _, c := range p.order(v.Children) {
			ok, err := p.eval(ctx, rec, c)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case Any:
		for _, c := range p.order(v.Children) {
			ok, err := p.eval(ctx, rec, c)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case Not:
		ok, err := p.eval(ctx, rec, v.Child)
		if err != nil {
			return false, err
		}
		return !ok, nil

	default:
		panic(fmt.Sprintf("filter: cannot evaluate %T", n))
	}
}

func (p *pass) airdropContact(rec *device.Record, v AirdropContact) bool {
	if rec.VendorInfo == nil {
		return false
	}
	target := discovery.FromContact(v.Contact)

	found := false
	for _, fp := range rec.VendorInfo.DiscoveryFingerprints {
		if fp == target {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	if v.MinLostTimeMs == nil {
		return true
	}

	// A fingerprint without a previous sighting is seen for the first time.
	s, ok := rec.Sightings[target]
	if !ok || s.FirstSeenMs == s.LastSeenMs {
		return true
	}
	return p.now-s.LastSeenMs >= *v.MinLostTimeMs
}

func (p *pass) isFollowing(ctx context.Context, rec *device.Record, v IsFollowing) (bool, error) {
	ok, err := p.detector.IsFollowing(ctx, rec.Address, v.MinDurationMs, v.DetectionIntervalMs, rec.LastFollowingDetectionMs, p.now)
	if err != nil || !ok {
		return false, err
	}

	// Detections of a cancelled pass are not recorded.
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := p.fctx.RecordFollowingDetection(ctx, rec.Address, p.now); err != nil {
		return false, fmt.Errorf("failed to record following detection for %s: %w", rec.Address, err)
	}
	at := p.now
	rec.LastFollowingDetectionMs = &at

	p.log.WithFields(logrus.Fields{
		"address": rec.Address,
		"at":      at,
	}).Info("Following detected")
	return true, nil
}

func (p *pass) order(children []Node) []Node {
	if !p.ReorderByCost || len(children) < 2 {
		return children
	}
	sorted := make([]Node, len(children))
	copy(sorted, children)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Cost(sorted[i]) < Cost(sorted[j])
	})
	return sorted
}

// Estimated evaluation costs, cheapest first.
const (
	CostMemory = iota
	CostHash
	CostUserLocation
	CostDeviceHistory
	CostFollowing
)

// Cost estimates the work needed to evaluate n. A combinator costs as much
// as its most expensive child.
func Cost(n Node) int {
	switch v := n.(type) {
	case AirdropContact:
		return CostHash
	case UserLocation:
		return CostUserLocation
	case DeviceLocation:
		return CostDeviceHistory
	case IsFollowing:
		return CostFollowing
	case All:
		return maxCost(v.Children)
	case Any:
		return maxCost(v.Children)
	case Not:
		return Cost(v.Child)
	default:
		return CostMemory
	}
}

func maxCost(children []Node) int {
	c := CostMemory
	for _, child := range children {
		c = max(c, Cost(child))
	}
	return c
}

func bounds(from, to *int64) (int64, int64) {
	lo, hi := int64(math.MinInt64), int64(math.MaxInt64)
	if from != nil {
		lo = *from
	}
	if to != nil {
		hi = *to
	}
	return lo, hi
}

func inInterval(ts int64, from, to *int64) bool {
	lo, hi := bounds(from, to)
	return ts >= lo && ts <= hi
}
