// Package engine runs one evaluation pass per scan batch: it decodes
// advertisements, updates device snapshots, evaluates the active profiles
// and emits matches.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/jellydator/ttlcache/v3"
	"github.com/sirupsen/logrus"

	"github.com/srg/blradar/internal/adv"
	"github.com/srg/blradar/internal/device"
	"github.com/srg/blradar/internal/discovery"
	"github.com/srg/blradar/internal/filter"
	"github.com/srg/blradar/internal/following"
	"github.com/srg/blradar/internal/groutine"
	"github.com/srg/blradar/internal/profile"
	"github.com/srg/blradar/internal/store"
	"github.com/srg/blradar/internal/vendor"
)

// Observation is the latest advertisement of one device within a scan window.
type Observation struct {
	Address  string `json:"address"`
	Name     string `json:"name,omitempty"`
	RSSI     int    `json:"rssi"`
	Raw      []byte `json:"raw"`
	SeenAtMs int64  `json:"seenAtMs"`
}

// Match reports the devices that satisfied a profile in one pass.
type Match struct {
	ProfileID   string   `json:"profileId"`
	ProfileName string   `json:"profileName"`
	Addresses   []string `json:"addresses"`
	AtMs        int64    `json:"atMs"`
}

// Config tunes the engine.
type Config struct {
	Following     following.Config
	ReorderByCost bool
	// Workers bounds how many devices are evaluated concurrently.
	Workers int
	// NotifyCooldown suppresses repeated matches of the same device by the
	// same profile. Zero disables suppression.
	NotifyCooldown time.Duration
	// MatchBuffer is the capacity of the match queue; the oldest matches
	// are overwritten when nobody drains it.
	MatchBuffer uint32
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Following:      following.DefaultConfig(),
		ReorderByCost:  true,
		Workers:        4,
		NotifyCooldown: 10 * time.Minute,
		MatchBuffer:    256,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, in Unix milliseconds.
func WithClock(now func() int64) Option {
	return func(e *Engine) { e.now = now }
}

// Engine evaluates profiles against scan batches.
type Engine struct {
	cfg       Config
	devices   *store.DeviceStore
	history   *store.LocationHistory
	profiles  *profile.Set
	lookup    vendor.Lookup
	evaluator *filter.Evaluator
	recent    *ttlcache.Cache[string, struct{}]
	outbox    mpmc.RichOverlappedRingBuffer[Match]
	now       func() int64
	logger    *logrus.Logger

	mu sync.Mutex // one pass at a time
}

// New creates an Engine.
func New(cfg Config, devices *store.DeviceStore, history *store.LocationHistory, profiles *profile.Set, lookup vendor.Lookup, logger *logrus.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MatchBuffer == 0 {
		cfg.MatchBuffer = DefaultConfig().MatchBuffer
	}

	e := &Engine{
		cfg:       cfg,
		devices:   devices,
		history:   history,
		profiles:  profiles,
		lookup:    lookup,
		evaluator: filter.NewEvaluator(cfg.Following, cfg.ReorderByCost, logger),
		recent: ttlcache.New[string, struct{}](
			ttlcache.WithTTL[string, struct{}](cfg.NotifyCooldown),
			ttlcache.WithDisableTouchOnHit[string, struct{}](),
		),
		outbox: mpmc.NewOverlappedRingBuffer[Match](cfg.MatchBuffer),
		now:    func() int64 { return time.Now().UnixMilli() },
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process runs one pass over a batch and returns the matches it emitted.
//
// Devices are evaluated against the state they had before this batch, so
// MinLostTime and AirdropContact see how long a device was gone. Snapshots
// and the batch's location points are committed only when the pass
// completes; a cancelled pass commits nothing and returns the context error.
//
// Every profile sees the following cooldown the device had before the
// pass. A following detection is recorded once per device and pass.
//
// Evaluation errors of individual profiles are joined into the returned
// error; they do not prevent other profiles from matching.
func (e *Engine) Process(ctx context.Context, batch []Observation) ([]Match, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	here, err := e.history.CurrentLocation(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current location: %w", err)
	}

	snapshots := e.snapshots(batch, now)

	profiles := e.profiles.Active()
	results := e.evaluate(ctx, snapshots, profiles, newPassContext(now, here, e.history, e.devices))

	if err := ctx.Err(); err != nil {
		e.logger.WithField("devices", len(snapshots)).Warn("Evaluation pass cancelled, nothing committed")
		return nil, err
	}

	e.commit(snapshots, here, now)

	var errs []error
	matched := make([][]string, len(profiles))
	for i, r := range results {
		for j, ok := range r.matched {
			if ok {
				matched[j] = append(matched[j], snapshots[i].Address)
			}
		}
		errs = append(errs, r.errs...)
	}

	matches := e.emit(profiles, matched, now)

	e.logger.WithFields(logrus.Fields{
		"devices":  len(snapshots),
		"profiles": len(profiles),
		"matches":  len(matches),
		"errors":   len(errs),
	}).Debug("Evaluation pass completed")

	return matches, errors.Join(errs...)
}

// snapshots dedupes the batch and builds one evaluation snapshot per device.
func (e *Engine) snapshots(batch []Observation, now int64) []*device.Record {
	latest := make(map[string]Observation, len(batch))
	for _, obs := range batch {
		if prev, ok := latest[obs.Address]; !ok || obs.SeenAtMs >= prev.SeenAtMs {
			latest[obs.Address] = obs
		}
	}

	out := make([]*device.Record, 0, len(latest))
	for addr, obs := range latest {
		records := adv.Decode(obs.Raw)
		info := vendor.Enrich(records, e.lookup)

		rec, known := e.devices.Lookup(addr)
		if !known {
			rec = device.NewRecord(addr, now)
		}
		if name := advertisedName(obs, records); name != "" {
			rec.Name = &name
		}
		rec.RSSI = obs.RSSI
		rec.DetectCount++
		// Vendor identity describes this batch only.
		rec.VendorInfo = info
		for _, fp := range observedFingerprints(rec) {
			if rec.Sightings == nil {
				rec.Sightings = make(map[discovery.Fingerprint]discovery.Sighting)
			}
			if _, seen := rec.Sightings[fp]; !seen {
				rec.Sightings[fp] = discovery.Sighting{FirstSeenMs: now, LastSeenMs: now}
			}
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

func advertisedName(obs Observation, records []adv.Record) string {
	if obs.Name != "" {
		return obs.Name
	}
	if r, ok := adv.Find(records, adv.TypeCompleteName); ok {
		return string(r.Data)
	}
	if r, ok := adv.Find(records, adv.TypeShortName); ok {
		return string(r.Data)
	}
	return ""
}

// observedFingerprints returns the discovery fingerprints carried by the
// snapshot's current advertisement.
func observedFingerprints(rec *device.Record) []discovery.Fingerprint {
	if rec.VendorInfo == nil {
		return nil
	}
	return rec.VendorInfo.DiscoveryFingerprints
}

type deviceResult struct {
	matched []bool // indexed like the profiles
	errs    []error
}

// evaluate runs every profile against every snapshot on a bounded pool of
// workers. Each snapshot is owned by exactly one worker.
func (e *Engine) evaluate(ctx context.Context, snapshots []*device.Record, profiles []*profile.Profile, fctx filter.Context) []deviceResult {
	results := make([]deviceResult, len(snapshots))
	if len(snapshots) == 0 || len(profiles) == 0 {
		for i := range results {
			results[i].matched = make([]bool, len(profiles))
		}
		return results
	}

	jobs := make(chan int)
	done := groutine.Pool(ctx, "evaluator", min(e.cfg.Workers, len(snapshots)), func(ctx context.Context, _ int) {
		for i := range jobs {
			results[i] = e.evaluateDevice(ctx, snapshots[i], profiles, fctx)
		}
	})

feed:
	for i := range snapshots {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	<-done
	return results
}

// evaluateDevice runs each profile against its own copy of the snapshot, so
// a following detection by one profile does not put the others into
// cooldown. The latest detection is merged back into rec for the commit.
func (e *Engine) evaluateDevice(ctx context.Context, rec *device.Record, profiles []*profile.Profile, fctx filter.Context) deviceResult {
	r := deviceResult{matched: make([]bool, len(profiles))}
	before := rec.LastFollowingDetectionMs
	detected := before
	defer func() { rec.LastFollowingDetectionMs = detected }()

	for j, p := range profiles {
		if ctx.Err() != nil {
			return r
		}
		snap := *rec
		snap.LastFollowingDetectionMs = before
		hits, err := profile.Matches(ctx, e.evaluator, p, []*device.Record{&snap}, fctx)
		if snap.LastFollowingDetectionMs != before {
			detected = snap.LastFollowingDetectionMs
		}
		if err != nil {
			r.errs = append(r.errs, err)
			e.logger.WithFields(logrus.Fields{
				"profile": p.ID,
				"address": rec.Address,
				"error":   err,
			}).Warn("Profile evaluation failed")
			continue
		}
		r.matched[j] = len(hits) > 0
	}
	return r
}

// commit stores the snapshots as seen now and adds the user's position, if
// known, to the history of every device in the batch. Only fingerprints
// observed in this batch are refreshed.
func (e *Engine) commit(snapshots []*device.Record, here *device.LocationPoint, now int64) {
	for _, rec := range snapshots {
		rec.LastSeenMs = now
		for _, fp := range observedFingerprints(rec) {
			s := rec.Sightings[fp]
			s.LastSeenMs = now
			rec.Sightings[fp] = s
		}
		e.devices.Upsert(rec)
		if here != nil {
			e.history.Append(rec.Address, device.LocationPoint{Lat: here.Lat, Lng: here.Lng, TimestampMs: now})
		}
	}
}

// emit drops addresses reported for the same profile within the cooldown
// and queues the remaining matches.
func (e *Engine) emit(profiles []*profile.Profile, matched [][]string, now int64) []Match {
	e.recent.DeleteExpired()

	var out []Match
	for j, p := range profiles {
		var fresh []string
		for _, addr := range matched[j] {
			if e.cfg.NotifyCooldown > 0 {
				key := p.ID + "|" + addr
				if e.recent.Get(key) != nil {
					continue
				}
				e.recent.Set(key, struct{}{}, ttlcache.DefaultTTL)
			}
			fresh = append(fresh, addr)
		}
		if len(fresh) == 0 {
			continue
		}

		m := Match{ProfileID: p.ID, ProfileName: p.DisplayName(), Addresses: fresh, AtMs: now}
		if overwrites, err := e.outbox.EnqueueM(m); err != nil {
			e.logger.WithError(err).Error("Failed to queue match")
		} else if overwrites > 0 {
			e.logger.WithField("overwritten", overwrites).Warn("Match queue full, oldest matches dropped")
		}

		e.logger.WithFields(logrus.Fields{
			"profile": p.ID,
			"devices": fresh,
		}).Info("Profile matched")
		out = append(out, m)
	}
	return out
}

// Drain removes and returns every queued match, oldest first.
func (e *Engine) Drain() []Match {
	var out []Match
	for !e.outbox.IsEmpty() {
		m, err := e.outbox.Dequeue()
		if err != nil {
			break
		}
		out = append(out, m)
	}
	return out
}

// Devices returns the store the engine commits to.
func (e *Engine) Devices() *store.DeviceStore {
	return e.devices
}

// passContext is the filter.Context of one pass; Now is fixed at its start.
//
// The user's position for the batch is not in the history until the commit.
// HistoryFor includes it for devices of the batch so evaluation sees it.
type passContext struct {
	now     int64
	here    *device.LocationPoint
	history *store.LocationHistory
	devices *store.DeviceStore

	mu       sync.Mutex
	recorded map[string]struct{}
}

func newPassContext(now int64, here *device.LocationPoint, history *store.LocationHistory, devices *store.DeviceStore) *passContext {
	return &passContext{
		now:      now,
		here:     here,
		history:  history,
		devices:  devices,
		recorded: make(map[string]struct{}),
	}
}

func (c *passContext) Now() int64 { return c.now }

func (c *passContext) HistoryFor(ctx context.Context, address string, fromMs, toMs int64) ([]device.LocationPoint, error) {
	points, err := c.history.Query(ctx, address, fromMs, toMs)
	if err != nil {
		return nil, err
	}
	if c.here != nil && c.now >= fromMs && c.now <= toMs {
		points = append(points, device.LocationPoint{Lat: c.here.Lat, Lng: c.here.Lng, TimestampMs: c.now})
	}
	return points, nil
}

func (c *passContext) CurrentLocation(ctx context.Context) (*device.LocationPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.here, nil
}

// RecordFollowingDetection writes through to the store once per address.
// Devices seen for the first time are not stored yet; their snapshot carries
// the detection into the commit.
func (c *passContext) RecordFollowingDetection(ctx context.Context, address string, atMs int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, done := c.recorded[address]; done {
		return nil
	}

	err := c.devices.RecordFollowingDetection(ctx, address, atMs)
	if err == nil {
		c.recorded[address] = struct{}{}
		return nil
	}
	var nf *device.NotFoundError
	if errors.As(err, &nf) {
		return nil
	}
	return err
}
