package hostble

import (
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/go-ble/ble/linux/hci/cmd"

	"github.com/srg/powerlight/internal/powermeter"
)

const hciTimeout = 20 * time.Second

func newDevice(params powermeter.ScanParams) (ble.Device, error) {
	var scanType uint8
	if params.Active {
		scanType = 1
	}
	scanParams := cmd.LESetScanParameters{
		LEScanType:           scanType,
		LEScanInterval:       params.Interval,
		LEScanWindow:         params.Window,
		OwnAddressType:       0, // public
		ScanningFilterPolicy: 0, // accept all
	}
	return linux.NewDevice(ble.OptDialerTimeout(hciTimeout), ble.OptScanParams(scanParams))
}
