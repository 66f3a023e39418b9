package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"

	"github.com/srg/blradar/internal/filter"
)

// Set is an ordered collection of profiles keyed by id. Iteration follows
// insertion order.
type Set struct {
	mu       sync.RWMutex
	profiles *orderedmap.OrderedMap[string, *Profile]
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{profiles: orderedmap.New[string, *Profile]()}
}

// Add validates p and appends it. Ids must be unique.
func (s *Set) Add(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles.Get(p.ID); exists {
		return fmt.Errorf("duplicate profile id %q", p.ID)
	}
	s.profiles.Set(p.ID, p)
	return nil
}

// Get returns the profile with the given id.
func (s *Set) Get(id string) (*Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles.Get(id)
}

// Remove deletes a profile, reporting whether it existed.
func (s *Set) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.profiles.Delete(id)
	return existed
}

// Len returns the number of profiles.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles.Len()
}

// All returns every profile in insertion order.
func (s *Set) All() []*Profile {
	return s.collect(func(*Profile) bool { return true })
}

// Active returns the active profiles in insertion order.
func (s *Set) Active() []*Profile {
	return s.collect(func(p *Profile) bool { return p.Active })
}

func (s *Set) collect(keep func(*Profile) bool) []*Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Profile, 0, s.profiles.Len())
	for pair := s.profiles.Oldest(); pair != nil; pair = pair.Next() {
		if keep(pair.Value) {
			out = append(out, pair.Value)
		}
	}
	return out
}

// document is the persisted form of a profile file.
type document struct {
	Profiles []profileDoc `json:"profiles"`
}

type profileDoc struct {
	ID          string      `json:"id"`
	Name        string      `json:"name,omitempty"`
	Description string      `json:"description,omitempty"`
	Active      *bool       `json:"active,omitempty"`
	Filter      filter.Expr `json:"filter"`
}

// Load reads a profile file. YAML and JSON are both accepted; filters use
// the tagged JSON layout of filter.Marshal. Profiles are active unless
// they say otherwise.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// Parse decodes profiles from YAML or JSON.
func Parse(data []byte) (*Set, error) {
	// YAML is a superset of JSON; route through JSON so filters decode once.
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}
	asJSON, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}

	var doc document
	if err := json.Unmarshal(asJSON, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode profiles: %w", err)
	}

	set := NewSet()
	for i, d := range doc.Profiles {
		p := &Profile{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			Active:      d.Active == nil || *d.Active,
			Filter:      d.Filter.Node,
		}
		if err := set.Add(p); err != nil {
			return nil, fmt.Errorf("profile %d: %w", i, err)
		}
	}
	return set, nil
}

// MarshalJSON writes the set in the layout Parse reads.
func (s *Set) MarshalJSON() ([]byte, error) {
	all := s.All()
	doc := document{Profiles: make([]profileDoc, 0, len(all))}
	for _, p := range all {
		active := p.Active
		doc.Profiles = append(doc.Profiles, profileDoc{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Active:      &active,
			Filter:      filter.Expr{Node: p.Filter},
		})
	}
	return json.Marshal(doc)
}
