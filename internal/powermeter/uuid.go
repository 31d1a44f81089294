package powermeter

import (
	"encoding/binary"

	"github.com/go-ble/ble"
)

// ShortUUID extracts the 16-bit short form of u.
//
// ble.UUID stores bytes little-endian, so a 128-bit UUID built on the
// Bluetooth base UUID carries its short form in bytes 12 and 13. Only the
// short-form positions are compared; the base bytes are not checked.
func ShortUUID(u ble.UUID) (uint16, bool) {
	switch len(u) {
	case 2:
		return binary.LittleEndian.Uint16(u), true
	case 16:
		return binary.LittleEndian.Uint16(u[12:14]), true
	default:
		return 0, false
	}
}

func matchesShortUUID(u ble.UUID, want uint16) bool {
	got, ok := ShortUUID(u)
	return ok && got == want
}
