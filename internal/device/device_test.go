package device

import (
	"testing"

	"github.com/srg/blradar/internal/discovery"
	"github.com/srg/blradar/internal/vendor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Clone(t *testing.T) {
	name := "AirPods"
	detected := int64(5_000)
	orig := NewRecord("AA:BB:CC:DD:EE:FF", 1_000)
	orig.Name = &name
	orig.AddTag("work")
	orig.VendorInfo = &vendor.Info{ID: 76, Name: "Apple, Inc.", DiscoveryFingerprints: []discovery.Fingerprint{0xA1B2}}
	orig.Sightings = map[discovery.Fingerprint]discovery.Sighting{0xA1B2: {FirstSeenMs: 1_000, LastSeenMs: 2_000}}
	orig.LastFollowingDetectionMs = &detected

	c := orig.Clone()
	require.Equal(t, orig, c)

	*c.Name = "changed"
	c.AddTag("home")
	c.VendorInfo.DiscoveryFingerprints[0] = 0
	c.Sightings[0xA1B2] = discovery.Sighting{}
	*c.LastFollowingDetectionMs = 0

	assert.Equal(t, "AirPods", *orig.Name)
	assert.Equal(t, []string{"work"}, orig.TagList())
	assert.Equal(t, discovery.Fingerprint(0xA1B2), orig.VendorInfo.DiscoveryFingerprints[0])
	assert.Equal(t, int64(2_000), orig.Sightings[0xA1B2].LastSeenMs)
	assert.Equal(t, int64(5_000), *orig.LastFollowingDetectionMs)

	var nilRecord *Record
	assert.Nil(t, nilRecord.Clone())
}

func TestRecord_Tags(t *testing.T) {
	r := NewRecord("11:22:33:44:55:66", 0)
	assert.False(t, r.HasTag("car"))

	r.AddTag("car")
	r.AddTag("bike")
	assert.True(t, r.HasTag("car"))
	assert.Equal(t, []string{"bike", "car"}, r.TagList())
}

func TestRecord_DisplayName(t *testing.T) {
	r := NewRecord("11:22:33:44:55:66", 0)
	assert.Equal(t, "11:22:33:44:55:66", r.DisplayName())

	name := "Tile"
	r.Name = &name
	assert.Equal(t, "Tile", r.DisplayName())
}

func TestNotFoundError(t *testing.T) {
	assert.EqualError(t, &NotFoundError{Resource: "device", ID: "AA"}, `device "AA" not found`)
	assert.EqualError(t, &NotFoundError{Resource: "profile"}, "profile not found")
}
