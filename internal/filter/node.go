// Package filter holds the detection filter tree and its evaluator.
//
// A filter is an immutable tree of Node values. Leaves test one property of
// a device snapshot; All, Any and Not combine them. The set of variants is
// closed: Node carries an unexported marker so only this package can add
// implementations, and every switch over nodes panics on anything else.
package filter

import (
	"fmt"
)

// Kind identifies a filter variant. Its string form is the persisted "type"
// discriminator and must not change.
type Kind uint8

const (
	KindName Kind = iota + 1
	KindAddress
	KindManufacturer
	KindIsFavorite
	KindMinLostTime
	KindFirstDetectionInterval
	KindLastDetectionInterval
	KindAirdropContact
	KindIsFollowing
	KindDeviceLocation
	KindUserLocation
	KindTag
	KindAll
	KindAny
	KindNot
)

var kindNames = map[Kind]string{
	KindName:                   "name",
	KindAddress:                "address",
	KindManufacturer:           "manufacturer",
	KindIsFavorite:             "is_favorite",
	KindMinLostTime:            "min_lost_time",
	KindFirstDetectionInterval: "first_detection_interval",
	KindLastDetectionInterval:  "last_detection_interval",
	KindAirdropContact:         "airdrop_contact",
	KindIsFollowing:            "is_following",
	KindDeviceLocation:         "device_location",
	KindUserLocation:           "user_location",
	KindTag:                    "tag",
	KindAll:                    "all",
	KindAny:                    "any",
	KindNot:                    "not",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind returns the Kind for a persisted discriminator.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown filter type %q", ErrInvalidFilter, s)
}

// Node is one element of a filter tree.
type Node interface {
	Kind() Kind
	node()
}

// Name matches devices whose advertised name contains Substring.
type Name struct {
	Substring     string `json:"substring"`
	CaseSensitive bool   `json:"caseSensitive"`
}

// Address matches one device address exactly.
type Address struct {
	Address string `json:"address"`
}

// Manufacturer matches the resolved company identifier.
type Manufacturer struct {
	VendorID uint16 `json:"vendorId"`
}

// IsFavorite matches the user's favorite flag.
type IsFavorite struct {
	Favorite bool `json:"favorite"`
}

// MinLostTime matches devices unseen for at least ThresholdMs before this pass.
type MinLostTime struct {
	ThresholdMs int64 `json:"thresholdMs"`
}

// FirstDetectionInterval matches devices first seen within [FromMs, ToMs].
// A nil bound is open.
type FirstDetectionInterval struct {
	FromMs *int64 `json:"fromMs,omitempty"`
	ToMs   *int64 `json:"toMs,omitempty"`
}

// LastDetectionInterval matches devices last seen within [FromMs, ToMs].
// A nil bound is open.
type LastDetectionInterval struct {
	FromMs *int64 `json:"fromMs,omitempty"`
	ToMs   *int64 `json:"toMs,omitempty"`
}

// AirdropContact matches devices broadcasting the discovery fingerprint of
// Contact (a phone number or email address).
//
// With MinLostTimeMs set, a repeat sighting only matches once the
// fingerprint has been gone for at least that long.
type AirdropContact struct {
	Contact       string `json:"contact"`
	MinLostTimeMs *int64 `json:"minLostTimeMs,omitempty"`
}

// IsFollowing matches devices that moved with the user during the last
// MinDurationMs. A detection suppresses further ones for DetectionIntervalMs.
type IsFollowing struct {
	MinDurationMs       int64 `json:"minDurationMs"`
	DetectionIntervalMs int64 `json:"detectionIntervalMs"`
}

// DeviceLocation matches devices recorded within RadiusMeters of the target
// during [FromMs, ToMs].
type DeviceLocation struct {
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	RadiusMeters float64 `json:"radiusMeters"`
	FromMs       *int64  `json:"fromMs,omitempty"`
	ToMs         *int64  `json:"toMs,omitempty"`
}

// UserLocation matches while the user is within RadiusMeters of the target.
// Default is the result when the user location is unknown.
type UserLocation struct {
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	RadiusMeters float64 `json:"radiusMeters"`
	Default      bool    `json:"default"`
}

// Tag matches devices carrying the tag.
type Tag struct {
	Tag string `json:"tag"`
}

// All is true when every child is.
type All struct {
	Children []Node
}

// Any is true when at least one child is.
type Any struct {
	Children []Node
}

// Not negates its child.
type Not struct {
	Child Node
}

func (Name) Kind() Kind                   { return KindName }
func (Address) Kind() Kind                { return KindAddress }
func (Manufacturer) Kind() Kind           { return KindManufacturer }
func (IsFavorite) Kind() Kind             { return KindIsFavorite }
func (MinLostTime) Kind() Kind            { return KindMinLostTime }
func (FirstDetectionInterval) Kind() Kind { return KindFirstDetectionInterval }
func (LastDetectionInterval) Kind() Kind  { return KindLastDetectionInterval }
func (AirdropContact) Kind() Kind         { return KindAirdropContact }
func (IsFollowing) Kind() Kind            { return KindIsFollowing }
func (DeviceLocation) Kind() Kind         { return KindDeviceLocation }
func (UserLocation) Kind() Kind           { return KindUserLocation }
func (Tag) Kind() Kind                    { return KindTag }
func (All) Kind() Kind                    { return KindAll }
func (Any) Kind() Kind                    { return KindAny }
func (Not) Kind() Kind                    { return KindNot }

func (Name) node()                   {}
func (Address) node()                {}
func (Manufacturer) node()           {}
func (IsFavorite) node()             {}
func (MinLostTime) node()            {}
func (FirstDetectionInterval) node() {}
func (LastDetectionInterval) node()  {}
func (AirdropContact) node()         {}
func (IsFollowing) node()            {}
func (DeviceLocation) node()         {}
func (UserLocation) node()           {}
func (Tag) node()                    {}
func (All) node()                    {}
func (Any) node()                    {}
func (Not) node()                    {}

// Ms returns a pointer to v, for optional millisecond bounds.
func Ms(v int64) *int64 {
	return &v
}

// String renders n as a compact expression, e.g. all(name("Tile"), not(tag("mine"))).
func String(n Node) string {
	switch v := n.(type) {
	case nil:
		return "<nil>"
	case Name:
		return fmt.Sprintf("name(%q)", v.Substring)
	case Address:
		return fmt.Sprintf("address(%s)", v.Address)
	case Manufacturer:
		return fmt.Sprintf("manufacturer(0x%04X)", v.VendorID)
	case IsFavorite:
		return fmt.Sprintf("is_favorite(%t)", v.Favorite)
	case MinLostTime:
		return fmt.Sprintf("min_lost_time(%dms)", v.ThresholdMs)
	case FirstDetectionInterval:
		return fmt.Sprintf("first_detection_interval(%s)", interval(v.FromMs, v.ToMs))
	case LastDetectionInterval:
		return fmt.Sprintf("last_detection_interval(%s)", interval(v.FromMs, v.ToMs))
	case AirdropContact:
		return fmt.Sprintf("airdrop_contact(%q)", v.Contact)
	case IsFollowing:
		return fmt.Sprintf("is_following(%dms)", v.MinDurationMs)
	case DeviceLocation:
		return fmt.Sprintf("device_location(%.5f,%.5f r=%.0fm)", v.Lat, v.Lng, v.RadiusMeters)
	case UserLocation:
		return fmt.Sprintf("user_location(%.5f,%.5f r=%.0fm)", v.Lat, v.Lng, v.RadiusMeters)
	case Tag:
		return fmt.Sprintf("tag(%q)", v.Tag)
	case All:
		return "all(" + join(v.Children) + ")"
	case Any:
		return "any(" + join(v.Children) + ")"
	case Not:
		return "not(" + String(v.Child) + ")"
	default:
		return fmt.Sprintf("%T", n)
	}
}

func join(children []Node) string {
	s := ""
	for i, c := range children {
		if i > 0 {
			s += ", "
		}
		s += String(c)
	}
	return s
}

func interval(from, to *int64) string {
	bound := func(p *int64) string {
		if p == nil {
			return "*"
		}
		return fmt.Sprint(*p)
	}
	return bound(from) + ".." + bound(to)
}
