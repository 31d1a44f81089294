package main

import (
	"errors"

	"github.com/srg/powerlight/internal/hostble"
	"github.com/srg/powerlight/internal/hue"
)

// Command-level errors
var (
	// ErrNoDevices indicates a scan finished without a single sighting.
	ErrNoDevices = errors.New("no devices discovered")
)

// FormatUserError turns known failures into a hint the rider can act on.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, hostble.ErrBluetoothOff):
		return "Bluetooth is turned off or the adapter is unavailable; enable it and try again"
	case errors.Is(err, hostble.ErrUnsupportedPlatform):
		return "Bluetooth Low Energy is not supported on this platform"
	case errors.Is(err, hue.ErrNoAddress), errors.Is(err, hue.ErrNoUser):
		return "Hue is enabled but not configured: " + err.Error()
	default:
		return err.Error()
	}
}
