// Package devicefactory selects the radio backend used for scanning.
package devicefactory

import (
	"github.com/srg/blradar/internal/device"
	goble "github.com/srg/blradar/internal/device/go-ble"
)

// DeviceFactory creates the device.ScanningDevice used for BLE scanning.
// This is a variable so that it can be overridden in tests.
var DeviceFactory = func() (device.ScanningDevice, error) {
	return goble.NewScanner()
}
