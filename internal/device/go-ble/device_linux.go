//go:build linux

package goble

import (
	ble "github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

// DeviceFactory creates the platform BLE device.
// This is a variable so that it can be overridden in tests.
var DeviceFactory = func() (ble.Device, error) {
	return linux.NewDevice()
}
