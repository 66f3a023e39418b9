// Package profile defines detection profiles: named filters evaluated
// against every scan batch.
package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/blradar/internal/device"
	"github.com/srg/blradar/internal/filter"
)

// Profile is a named filter tree.
type Profile struct {
	ID          string
	Name        string
	Description string
	Active      bool
	// Filter may be nil; such a profile never matches.
	Filter filter.Node
}

// Validate checks the profile metadata and filter tree.
func (p *Profile) Validate() error {
	if p.ID == "" {
		return errors.New("profile id is required")
	}
	if p.Filter == nil {
		return nil
	}
	if err := filter.Validate(p.Filter); err != nil {
		return fmt.Errorf("profile %q: %w", p.ID, err)
	}
	return nil
}

// DisplayName returns the name, or the id if the profile has none.
func (p *Profile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// Matches evaluates p against every device of a batch and returns those
// that satisfy it; the profile matches the batch iff the result is
// non-empty. Inactive profiles match nothing.
//
// An evaluation error for one device does not stop the others; all errors
// are returned joined, alongside the devices that did match.
func Matches(ctx context.Context, ev *filter.Evaluator, p *Profile, devices []*device.Record, fctx filter.Context) ([]*device.Record, error) {
	if !p.Active || p.Filter == nil {
		return nil, nil
	}

	var matched []*device.Record
	var errs []error
	for _, rec := range devices {
		if err := ctx.Err(); err != nil {
			return matched, err
		}
		ok, err := ev.Evaluate(ctx, rec, p.Filter, fctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("profile %q, device %s: %w", p.ID, rec.Address, err))
			continue
		}
		if ok {
			matched = append(matched, rec)
		}
	}
	return matched, errors.Join(errs...)
}
