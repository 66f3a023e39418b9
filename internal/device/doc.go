// Package device defines the tracked device model and the radio-facing
// interfaces the scanner consumes.
//
// This package provides:
//   - Record, the per-device snapshot evaluated by detection profiles
//   - LocationPoint, the user position attached to a sighting
//   - Advertisement and ScanningDevice, implemented by the go-ble adapter
//   - Service UUID normalisation for scan filters
package device
