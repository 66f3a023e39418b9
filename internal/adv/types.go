// Package adv decodes BLE advertising payloads into length-prefixed AD records.
//
// A payload is a concatenation of AD structures, each laid out as
// [length][type][data...] where length counts the type byte plus the data.
// Payloads come from uncontrolled third-party hardware, so decoding is
// permissive: truncated trailing structures are dropped rather than reported.
package adv

import "fmt"

// MaxLegacyPayloadLength is the maximum advertising (or scan response) payload
// length for legacy advertising PDUs.
const MaxLegacyPayloadLength = 31

// AD types from the Bluetooth SIG assigned numbers.
const (
	TypeFlags            byte = 0x01 // Flags
	TypeSomeUUID16       byte = 0x02 // Incomplete List of 16-bit Service Class UUIDs
	TypeAllUUID16        byte = 0x03 // Complete List of 16-bit Service Class UUIDs
	TypeSomeUUID32       byte = 0x04 // Incomplete List of 32-bit Service Class UUIDs
	TypeAllUUID32        byte = 0x05 // Complete List of 32-bit Service Class UUIDs
	TypeSomeUUID128      byte = 0x06 // Incomplete List of 128-bit Service Class UUIDs
	TypeAllUUID128       byte = 0x07 // Complete List of 128-bit Service Class UUIDs
	TypeShortName        byte = 0x08 // Shortened Local Name
	TypeCompleteName     byte = 0x09 // Complete Local Name
	TypeTxPower          byte = 0x0A // Tx Power Level
	TypeClassOfDevice    byte = 0x0D // Class of Device
	TypeServiceSol16     byte = 0x14 // List of 16-bit Service Solicitation UUIDs
	TypeServiceSol128    byte = 0x15 // List of 128-bit Service Solicitation UUIDs
	TypeServiceData16    byte = 0x16 // Service Data - 16-bit UUID
	TypeAppearance       byte = 0x19 // Appearance
	TypeAdvInterval      byte = 0x1A // Advertising Interval
	TypeServiceData32    byte = 0x20 // Service Data - 32-bit UUID
	TypeServiceData128   byte = 0x21 // Service Data - 128-bit UUID
	TypeManufacturerData byte = 0xFF // Manufacturer Specific Data
)

var typeNames = map[byte]string{
	TypeFlags:            "Flags",
	TypeSomeUUID16:       "Incomplete 16-bit UUIDs",
	TypeAllUUID16:        "Complete 16-bit UUIDs",
	TypeSomeUUID32:       "Incomplete 32-bit UUIDs",
	TypeAllUUID32:        "Complete 32-bit UUIDs",
	TypeSomeUUID128:      "Incomplete 128-bit UUIDs",
	TypeAllUUID128:       "Complete 128-bit UUIDs",
	TypeShortName:        "Shortened Local Name",
	TypeCompleteName:     "Complete Local Name",
	TypeTxPower:          "Tx Power Level",
	TypeClassOfDevice:    "Class of Device",
	TypeServiceSol16:     "16-bit Service Solicitation",
	TypeServiceSol128:    "128-bit Service Solicitation",
	TypeServiceData16:    "Service Data (16-bit)",
	TypeAppearance:       "Appearance",
	TypeAdvInterval:      "Advertising Interval",
	TypeServiceData32:    "Service Data (32-bit)",
	TypeServiceData128:   "Service Data (128-bit)",
	TypeManufacturerData: "Manufacturer Specific Data",
}

// TypeName returns a human-readable name for an AD type.
func TypeName(t byte) string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (0x%02X)", t)
}

// Record is a single decoded AD structure.
type Record struct {
	Type byte   `json:"type"`
	Data []byte `json:"data"`
}

// String implements fmt.Stringer
func (r Record) String() string {
	return fmt.Sprintf("%s [% X]", TypeName(r.Type), r.Data)
}

// Find returns the first record of the given type.
func Find(records []Record, t byte) (Record, bool) {
	for _, r := range records {
		if r.Type == t {
			return r, true
		}
	}
	return Record{}, false
}
