package hostble

import (
	"testing"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/assert"

	"github.com/srg/powerlight/internal/powermeter"
)

type stubAdv struct {
	ble.Advertisement
	name        string
	services    []ble.UUID
	serviceData []ble.ServiceData
	mfg         []byte
}

func (a *stubAdv) LocalName() string              { return a.name }
func (a *stubAdv) Services() []ble.UUID           { return a.services }
func (a *stubAdv) ServiceData() []ble.ServiceData { return a.serviceData }
func (a *stubAdv) ManufacturerData() []byte       { return a.mfg }

func TestEncodeAD(t *testing.T) {
	// GOAL: Verify go-ble advertisement fields are re-encoded as length-prefixed AD structures
	//
	// TEST SCENARIO: name + 16/128-bit services + service data + manufacturer data → exact bytes

	custom := ble.MustParse("6e400001-b5a3-f393-e0a9-e50e24dcca9e")
	adv := &stubAdv{
		name:        "KICKR",
		services:    []ble.UUID{ble.UUID16(0x1818), ble.UUID16(0x1826), custom},
		serviceData: []ble.ServiceData{{UUID: ble.UUID16(0x1826), Data: []byte{0x01, 0x20}}},
		mfg:         []byte{0x59, 0x00, 0xAA},
	}

	want := []byte{0x06, 0x09, 'K', 'I', 'C', 'K', 'R'}
	want = append(want, 0x05, 0x03, 0x18, 0x18, 0x26, 0x18)
	want = append(want, 0x11, 0x07)
	want = append(want, custom...)
	want = append(want, 0x05, 0x16, 0x26, 0x18, 0x01, 0x20)
	want = append(want, 0x04, 0xFF, 0x59, 0x00, 0xAA)

	assert.Equal(t, want, EncodeAD(adv))

	name, ok := powermeter.LocalName(EncodeAD(adv))
	assert.True(t, ok)
	assert.Equal(t, "KICKR", name)
}

func TestEncodeADEmpty(t *testing.T) {
	assert.Empty(t, EncodeAD(&stubAdv{}))
}

func TestEncodeADLongFieldTruncated(t *testing.T) {
	mfg := make([]byte, 300)
	out := EncodeAD(&stubAdv{mfg: mfg})
	assert.Equal(t, byte(255), out[0])
	assert.Len(t, out, 256)
}
