//go:build !linux && !darwin

package hostble

import (
	"github.com/go-ble/ble"

	"github.com/srg/powerlight/internal/powermeter"
)

func newDevice(_ powermeter.ScanParams) (ble.Device, error) {
	return nil, ErrUnsupportedPlatform
}
