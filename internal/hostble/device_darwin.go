package hostble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"

	"github.com/srg/powerlight/internal/powermeter"
)

// CoreBluetooth picks its own scan timing; params are ignored.
func newDevice(_ powermeter.ScanParams) (ble.Device, error) {
	return darwin.NewDevice()
}
