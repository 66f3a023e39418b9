// Package discovery extracts AirDrop peer-discovery contact fingerprints from
// Apple manufacturer data and derives the matching query-side fingerprints
// from contact strings.
//
// A fingerprint is the first two bytes of a SHA-256 digest. It is a lossy
// correlation key, not a security primitive: collisions are expected and
// equality is the only meaningful operation.
package discovery

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/srg/blradar/internal/adv"
)

// AirDrop frame layout inside the manufacturer specific data record:
//
//	[0:2]   company id (0x004C, little-endian)
//	[2]     continuity type (0x05 = AirDrop)
//	[3:22]  payload: length, zero padding, version, then four 2-byte hashes
const (
	FrameSize     = 22
	SubtypeMarker = 0x05
	PayloadOffset = 3
	PayloadSize   = 19
)

// Hash pairs inside the payload: Apple ID, phone, email, email2.
var fingerprintOffsets = [4][2]int{{10, 11}, {12, 13}, {14, 15}, {16, 17}}

// Fingerprint is a truncated contact hash.
type Fingerprint uint16

// String returns the fingerprint as four lowercase hex digits.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%04x", uint16(f))
}

// ParseFingerprint parses four hex digits, optionally prefixed with 0x.
func ParseFingerprint(s string) (Fingerprint, error) {
	clean := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if len(clean) != 4 {
		return 0, fmt.Errorf("invalid fingerprint %q: expected 4 hex digits", s)
	}
	b, err := hex.DecodeString(clean)
	if err != nil {
		return 0, fmt.Errorf("invalid fingerprint %q: %w", s, err)
	}
	return Fingerprint(uint16(b[0])<<8 | uint16(b[1])), nil
}

// FromContact computes the query-side fingerprint of a phone number or email
// as it would appear in a discovery frame.
func FromContact(contact string) Fingerprint {
	sum := sha256.Sum256([]byte(strings.TrimSpace(contact)))
	return Fingerprint(uint16(sum[0])<<8 | uint16(sum[1]))
}

// Extract returns the four fingerprints carried by an AirDrop discovery frame,
// or nil when the manufacturer data is not in that format.
func Extract(records []adv.Record) []Fingerprint {
	rec, ok := adv.Find(records, adv.TypeManufacturerData)
	if !ok || len(rec.Data) != FrameSize || rec.Data[2] != SubtypeMarker {
		return nil
	}

	var payload [PayloadSize]byte
	copy(payload[:], rec.Data[PayloadOffset:PayloadOffset+PayloadSize])

	fingerprints := make([]Fingerprint, 0, len(fingerprintOffsets))
	for _, pair := range fingerprintOffsets {
		high, low := payload[pair[0]], payload[pair[1]]
		fingerprints = append(fingerprints, Fingerprint(uint16(high)<<8|uint16(low)))
	}
	return fingerprints
}

// Sighting tracks when a fingerprint was first and last observed on a device.
type Sighting struct {
	FirstSeenMs int64 `json:"firstSeenMs"`
	LastSeenMs  int64 `json:"lastSeenMs"`
}
