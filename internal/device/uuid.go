package device

import (
	"fmt"
	"strings"
)

const sigBaseSuffix = "00001000800000805f9b34fb"

// NormalizeUUID converts a UUID string to the internal format (lowercase, no
// dashes or braces). Strips a 0x prefix. Full 128-bit UUIDs in the Bluetooth
// SIG base format (0000xxxx-0000-1000-8000-00805f9b34fb) are shortened to
// their 16-bit form (xxxx). Returns "" for malformed input.
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.TrimSpace(uuid))
	u = strings.TrimPrefix(u, "0x")
	u = strings.NewReplacer("-", "", "{", "", "}", "").Replace(u)

	for _, r := range u {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return ""
		}
	}

	switch len(u) {
	case 4, 8:
		return u
	case 32:
		if strings.HasPrefix(u, "0000") && strings.HasSuffix(u, sigBaseSuffix) {
			return u[4:8]
		}
		return u
	default:
		return ""
	}
}

// ValidateUUID validates that UUID strings are non-empty and well-formed.
// Returns normalized UUID strings or an error.
func ValidateUUID(uuids ...string) ([]string, error) {
	if len(uuids) == 0 {
		return nil, fmt.Errorf("at least one UUID is required")
	}

	result := make([]string, 0, len(uuids))
	for i, uuid := range uuids {
		if uuid == "" {
			return nil, fmt.Errorf("UUID at index %d cannot be empty", i)
		}
		normalized := NormalizeUUID(uuid)
		if normalized == "" {
			return nil, fmt.Errorf("invalid UUID format at index %d: %s", i, uuid)
		}
		result = append(result, normalized)
	}
	return result, nil
}
