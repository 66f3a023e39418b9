package main

import (
	"errors"
	"fmt"

	"github.com/srg/blradar/internal/device"
)

// Command-level errors
var (
	ErrInvalidLocation = errors.New("invalid location")
	ErrNoProfiles      = errors.New("no profiles")
)

// FormatUserError turns internal errors into messages for the terminal.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is turned off; enable it and try again"
	case errors.Is(err, device.ErrUnsupported):
		return "BLE scanning is not supported on this platform"
	case errors.Is(err, ErrNoProfiles):
		return fmt.Sprintf("%s (pass --profiles or set 'profiles' in the config file)", err)
	default:
		return err.Error()
	}
}
