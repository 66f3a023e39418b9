//go:build !darwin && !linux

package goble

import (
	"fmt"
	"runtime"

	ble "github.com/go-ble/ble"
	"github.com/srg/blradar/internal/device"
)

// DeviceFactory creates the platform BLE device.
// This is a variable so that it can be overridden in tests.
var DeviceFactory = func() (ble.Device, error) {
	return nil, fmt.Errorf("%w: no BLE backend for %s", device.ErrUnsupported, runtime.GOOS)
}
