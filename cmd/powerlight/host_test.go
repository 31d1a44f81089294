package main

import (
	"bytes"
	"sync"

	"github.com/go-ble/ble"

	"github.com/srg/powerlight/internal/powermeter"
)

const (
	trainerAddress = "c0:ff:ee:00:00:01"
	trainerName    = "KICKR CORE 5D21"
	powerHandle    = powermeter.AttHandle(0x22)
)

func adName(name string) []byte {
	return append([]byte{byte(len(name) + 1), powermeter.ADTypeCompleteName}, name...)
}

// powerPayload encodes a Cycling Power Measurement with no optional fields.
func powerPayload(watts int16) []byte {
	return []byte{0x00, 0x00, byte(watts), byte(watts >> 8)}
}

// trainerHost plays a trainer that advertises, accepts the connection and
// streams power right after notifications are enabled.
type trainerHost struct {
	events chan powermeter.Event
	power  []int16

	mu    sync.Mutex
	calls []string
}

func newTrainerHost(power ...int16) *trainerHost {
	return &trainerHost{events: make(chan powermeter.Event, 64), power: power}
}

func (h *trainerHost) record(call string) {
	h.mu.Lock()
	h.calls = append(h.calls, call)
	h.mu.Unlock()
}

func (h *trainerHost) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func (h *trainerHost) PowerOn() error {
	h.record("power_on")
	h.events <- powermeter.StackReady{}
	return nil
}

func (h *trainerHost) SetScanParameters(powermeter.ScanParams) error {
	h.record("set_scan_parameters")
	return nil
}

func (h *trainerHost) StartScan() error {
	h.record("start_scan")
	h.events <- powermeter.AdvertisementReport{
		Address:   "c0:ff:ee:00:00:02",
		EventType: powermeter.AdvInd,
		Data:      adName("Phone"),
	}
	h.events <- powermeter.AdvertisementReport{
		Address:   trainerAddress,
		EventType: powermeter.AdvInd,
		RSSI:      -60,
		Data:      adName(trainerName),
	}
	return nil
}

func (h *trainerHost) StopScan() error {
	h.record("stop_scan")
	return nil
}

func (h *trainerHost) Connect(address string, _ powermeter.AddressType) error {
	h.record("connect " + address)
	h.events <- powermeter.ConnectionComplete{Handle: 1}
	return nil
}

func (h *trainerHost) DiscoverPrimaryServices(handle powermeter.ConnHandle) error {
	h.record("discover_services")
	h.events <- powermeter.ServiceFound{Handle: handle, UUID: ble.UUID16(0x1818), Start: 0x20, End: 0x30}
	h.events <- powermeter.DiscoveryComplete{Handle: handle}
	return nil
}

func (h *trainerHost) DiscoverCharacteristics(handle powermeter.ConnHandle, _ powermeter.Service) error {
	h.record("discover_characteristics")
	h.events <- powermeter.CharacteristicFound{
		Handle:      handle,
		UUID:        ble.UUID16(0x2A63),
		ValueHandle: powerHandle,
		Properties:  ble.CharNotify,
	}
	h.events <- powermeter.DiscoveryComplete{Handle: handle}
	return nil
}

func (h *trainerHost) RegisterNotificationListener(_ powermeter.ConnHandle, char powermeter.Characteristic) (powermeter.Subscription, error) {
	h.record("register_listener")
	return powermeter.Subscription{ID: 1, ValueHandle: char.ValueHandle}, nil
}

func (h *trainerHost) WriteClientCharacteristicConfig(handle powermeter.ConnHandle, _ powermeter.Characteristic, enable bool) error {
	h.record("write_cccd")
	h.events <- powermeter.DiscoveryComplete{Handle: handle}
	for _, w := range h.power {
		h.events <- powermeter.Notification{Handle: handle, ValueHandle: powerHandle, Payload: powerPayload(w)}
	}
	return nil
}

func (h *trainerHost) Disconnect(handle powermeter.ConnHandle) error {
	h.record("disconnect")
	h.events <- powermeter.DisconnectionComplete{Handle: handle, Reason: powermeter.ReasonLocalHostTerminated}
	return nil
}

// syncBuffer is a bytes.Buffer safe for the display and the test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
