package powermeter_test

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-ble/ble"

	"github.com/srg/powerlight/internal/powermeter"
)

// fakeHost records every command issued by the client as a short string.
type fakeHost struct {
	calls   []string
	failOn  map[string]error
	nextSub uint32
}

func newFakeHost() *fakeHost {
	return &fakeHost{failOn: map[string]error{}}
}

func (h *fakeHost) record(name string, format string, args ...any) error {
	call := name
	if format != "" {
		call += " " + fmt.Sprintf(format, args...)
	}
	h.calls = append(h.calls, call)
	return h.failOn[name]
}

func (h *fakeHost) PowerOn() error { return h.record("power_on", "") }

func (h *fakeHost) SetScanParameters(p powermeter.ScanParams) error {
	return h.record("set_scan_parameters", "active=%t interval=%d window=%d", p.Active, p.Interval, p.Window)
}

func (h *fakeHost) StartScan() error { return h.record("start_scan", "") }

func (h *fakeHost) StopScan() error { return h.record("stop_scan", "") }

func (h *fakeHost) Connect(address string, addrType powermeter.AddressType) error {
	return h.record("connect", "%s/%d", address, addrType)
}

func (h *fakeHost) DiscoverPrimaryServices(handle powermeter.ConnHandle) error {
	return h.record("discover_services", "%d", handle)
}

func (h *fakeHost) DiscoverCharacteristics(handle powermeter.ConnHandle, svc powermeter.Service) error {
	return h.record("discover_characteristics", "%d %d-%d", handle, svc.Start, svc.End)
}

func (h *fakeHost) RegisterNotificationListener(handle powermeter.ConnHandle, char powermeter.Characteristic) (powermeter.Subscription, error) {
	h.nextSub++
	err := h.record("register_listener", "%d %d", handle, char.ValueHandle)
	return powermeter.Subscription{ID: h.nextSub, ValueHandle: char.ValueHandle}, err
}

func (h *fakeHost) WriteClientCharacteristicConfig(handle powermeter.ConnHandle, char powermeter.Characteristic, enable bool) error {
	return h.record("write_cccd", "%d %d %t", handle, char.ValueHandle, enable)
}

func (h *fakeHost) Disconnect(handle powermeter.ConnHandle) error {
	return h.record("disconnect", "%d", handle)
}

// count returns how many recorded calls start with name.
func (h *fakeHost) count(name string) int {
	n := 0
	for _, c := range h.calls {
		if c == name || strings.HasPrefix(c, name+" ") {
			n++
		}
	}
	return n
}

func (h *fakeHost) last() string {
	if len(h.calls) == 0 {
		return ""
	}
	return h.calls[len(h.calls)-1]
}

func (h *fakeHost) reset() { h.calls = nil }

// fakeClock is a manually advanced clock.
type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var errRejected = errors.New("rejected")

// adName builds AD data with a single name field of the given type.
func adName(t byte, name string) []byte {
	return append([]byte{byte(len(name) + 1), t}, name...)
}

// uuid128 returns the 128-bit base UUID form of a short UUID.
func uuid128(short uint16) ble.UUID {
	return ble.MustParse(fmt.Sprintf("0000%04x-0000-1000-8000-00805f9b34fb", short))
}
