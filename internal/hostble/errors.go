package hostble

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ble/ble"

	"github.com/srg/powerlight/internal/powermeter"
)

// Adapter errors. Commands return them only for immediate rejection.
var (
	ErrBluetoothOff        = errors.New("bluetooth is turned off")
	ErrNotPowered          = errors.New("host stack is not powered on")
	ErrNotConnected        = errors.New("device not connected")
	ErrUnknownHandle       = errors.New("unknown connection handle")
	ErrUnknownAttribute    = errors.New("unknown attribute handle")
	ErrUnsupportedPlatform = errors.New("BLE is not supported on this platform")
	ErrClosed              = errors.New("adapter closed")
)

// NormalizeError maps known go-ble error strings to the sentinels above.
// The original error is kept in the chain.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case msg == "central manager has invalid state: have=4 want=5: is Bluetooth turned on?":
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "bluetooth is turned off"):
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "can't init hci"):
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "device not connected"):
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	case containsIgnoreCase(msg, "disconnected"):
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	default:
		return err
	}
}

// attStatus converts a procedure error into a DiscoveryComplete status.
func attStatus(err error) uint8 {
	if err == nil {
		return 0
	}
	var attErr ble.ATTError
	if errors.As(err, &attErr) {
		return uint8(attErr)
	}
	return powermeter.StatusUnlikelyError
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
