package hostble_test

import (
	"context"
	"sync"

	"github.com/go-ble/ble"
)

type fakeAdv struct {
	ble.Advertisement
	addr        ble.Addr
	name        string
	services    []ble.UUID
	mfg         []byte
	connectable bool
	rssi        int
}

func (a *fakeAdv) Addr() ble.Addr                 { return a.addr }
func (a *fakeAdv) LocalName() string              { return a.name }
func (a *fakeAdv) Services() []ble.UUID           { return a.services }
func (a *fakeAdv) ServiceData() []ble.ServiceData { return nil }
func (a *fakeAdv) ManufacturerData() []byte       { return a.mfg }
func (a *fakeAdv) Connectable() bool              { return a.connectable }
func (a *fakeAdv) RSSI() int                      { return a.rssi }

// hciAdv adds the PDU metadata the HCI backend reports.
type hciAdv struct {
	fakeAdv
	eventType   uint8
	addressType uint8
}

func (a *hciAdv) EventType() uint8   { return a.eventType }
func (a *hciAdv) AddressType() uint8 { return a.addressType }

type fakeDevice struct {
	ble.Device

	mu      sync.Mutex
	ads     []ble.Advertisement
	client  *fakeClient
	dialErr error
	dialed  []string
	scans   int
	stopped bool
}

func (d *fakeDevice) Scan(ctx context.Context, _ bool, h ble.AdvHandler) error {
	d.mu.Lock()
	d.scans++
	ads := d.ads
	d.mu.Unlock()

	for _, a := range ads {
		h(a)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (d *fakeDevice) Dial(_ context.Context, a ble.Addr) (ble.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialed = append(d.dialed, a.String())
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	return d.client, nil
}

func (d *fakeDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	return nil
}

func (d *fakeDevice) dialedAddrs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dialed...)
}

type fakeClient struct {
	ble.Client

	mu           sync.Mutex
	services     []*ble.Service
	chars        map[*ble.Service][]*ble.Characteristic
	cccd         map[uint16]*ble.Descriptor // by value handle; nil means not reported
	serviceErr   error
	subscribed   map[uint16]ble.NotificationHandler
	cancelled    int
	disconnected chan struct{}
	closeOnce    sync.Once
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		chars:        map[*ble.Service][]*ble.Characteristic{},
		cccd:         map[uint16]*ble.Descriptor{},
		subscribed:   map[uint16]ble.NotificationHandler{},
		disconnected: make(chan struct{}),
	}
}

func (c *fakeClient) DiscoverServices(_ []ble.UUID) ([]*ble.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.serviceErr != nil {
		return nil, c.serviceErr
	}
	return c.services, nil
}

func (c *fakeClient) DiscoverCharacteristics(_ []ble.UUID, s *ble.Service) ([]*ble.Characteristic, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chars[s], nil
}

func (c *fakeClient) DiscoverDescriptors(_ []ble.UUID, ch *ble.Characteristic) ([]*ble.Descriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d := c.cccd[ch.ValueHandle]; d != nil {
		ch.CCCD = d
		return []*ble.Descriptor{d}, nil
	}
	return nil, nil
}

func (c *fakeClient) Subscribe(ch *ble.Characteristic, _ bool, h ble.NotificationHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed[ch.ValueHandle] = h
	return nil
}

func (c *fakeClient) Unsubscribe(ch *ble.Characteristic, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscribed, ch.ValueHandle)
	return nil
}

func (c *fakeClient) CancelConnection() error {
	c.mu.Lock()
	c.cancelled++
	c.mu.Unlock()
	c.drop()
	return nil
}

func (c *fakeClient) Disconnected() <-chan struct{} { return c.disconnected }

// drop simulates the link going away.
func (c *fakeClient) drop() {
	c.closeOnce.Do(func() { close(c.disconnected) })
}

// notify delivers a value to the handler subscribed on valueHandle.
func (c *fakeClient) notify(valueHandle uint16, data []byte) bool {
	c.mu.Lock()
	h := c.subscribed[valueHandle]
	c.mu.Unlock()
	if h == nil {
		return false
	}
	h(data)
	return true
}

func (c *fakeClient) cancelCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// cyclingPowerClient returns a client exposing Generic Access and Cycling
// Power with its measurement characteristic at value handle 0x22.
func cyclingPowerClient() *fakeClient {
	c := newFakeClient()
	gap := &ble.Service{UUID: ble.UUID16(0x1800), Handle: 0x01, EndHandle: 0x07}
	cps := &ble.Service{UUID: ble.UUID16(0x1818), Handle: 0x20, EndHandle: 0x30}
	c.services = []*ble.Service{gap, cps}
	c.chars[gap] = []*ble.Characteristic{
		{UUID: ble.UUID16(0x2A00), Property: ble.CharRead, Handle: 0x02, ValueHandle: 0x03, EndHandle: 0x03},
	}
	c.chars[cps] = []*ble.Characteristic{
		{UUID: ble.UUID16(0x2A63), Property: ble.CharNotify, Handle: 0x21, ValueHandle: 0x22, EndHandle: 0x24},
		{UUID: ble.UUID16(0x2A65), Property: ble.CharRead, Handle: 0x25, ValueHandle: 0x26, EndHandle: 0x26},
	}
	return c
}
