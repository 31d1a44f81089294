package hostble

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/powerlight/internal/groutine"
	"github.com/srg/powerlight/internal/powermeter"
)

const (
	// DefaultEventBuffer is the default capacity of the events channel.
	DefaultEventBuffer = 256

	// DefaultDialTimeout bounds a single connection attempt.
	DefaultDialTimeout = 10 * time.Second

	// disconnectGrace is how long Disconnect waits for the platform to report
	// the link gone before dropping it locally.
	disconnectGrace = 3 * time.Second

	closeTimeout = 3 * time.Second
)

// DeviceFactory creates the ble.Device on PowerOn (can be overridden in tests)
var DeviceFactory = newDevice

// Options configures an Adapter. Zero values select defaults.
type Options struct {
	Logger      *logrus.Logger
	EventBuffer int
	DialTimeout time.Duration
}

var _ powermeter.HostStack = (*Adapter)(nil)

// Adapter is a go-ble backed powermeter.HostStack.
type Adapter struct {
	logger      *logrus.Logger
	events      chan powermeter.Event
	dialTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	group  groutine.Group

	mu       sync.Mutex
	dev      ble.Device
	params   powermeter.ScanParams
	powering bool
	err      error
	scan     *scanSession // active scan, nil when stopped
	lastScan *scanSession
	seen     *hashmap.Map[string, ble.Addr]

	links      *hashmap.Map[powermeter.ConnHandle, *link]
	nextHandle atomic.Uint32
	nextSub    atomic.Uint32
	dropped    atomic.Uint64
}

// NewAdapter creates an Adapter. No Bluetooth resource is touched until PowerOn.
func NewAdapter(opts *Options) *Adapter {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	buffer := opts.EventBuffer
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Adapter{
		logger:      logger,
		events:      make(chan powermeter.Event, buffer),
		dialTimeout: dialTimeout,
		ctx:         ctx,
		cancel:      cancel,
		params:      powermeter.DefaultScanParams(),
		links:       hashmap.New[powermeter.ConnHandle, *link](),
	}
}

// Events delivers host events. The channel is never closed; stop reading when
// the adapter is closed.
func (a *Adapter) Events() <-chan powermeter.Event {
	return a.events
}

// Err returns the last device level failure, such as Bluetooth being off.
func (a *Adapter) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// DroppedReports counts advertisement reports discarded while the consumer
// was behind.
func (a *Adapter) DroppedReports() uint64 {
	return a.dropped.Load()
}

// SetScanParameters stores the parameters used when the device is created.
func (a *Adapter) SetScanParameters(params powermeter.ScanParams) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.dev != nil {
		a.logger.Warn("Scan parameters changed after power on, they apply to the next device")
	}
	a.params = params
	return nil
}

// PowerOn creates the BLE device in the background and posts StackReady once
// it accepts commands. A failure is logged and kept for Err; no event follows.
func (a *Adapter) PowerOn() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ctx.Err() != nil {
		return ErrClosed
	}
	if a.dev != nil || a.powering {
		return nil
	}
	a.powering = true
	params := a.params

	a.group.Go(a.ctx, "ble-power-on", func(ctx context.Context) {
		dev, err := DeviceFactory(params)

		a.mu.Lock()
		a.powering = false
		if err != nil {
			a.err = NormalizeError(err)
			a.mu.Unlock()
			a.logger.WithField("error", err).Error("Failed to create BLE device")
			return
		}
		if ctx.Err() != nil {
			a.mu.Unlock()
			_ = dev.Stop()
			return
		}
		a.dev = dev
		a.err = nil
		a.mu.Unlock()

		a.logger.WithFields(logrus.Fields{
			"active":   params.Active,
			"interval": params.Interval,
			"window":   params.Window,
		}).Debug("BLE device created")
		a.post(powermeter.StackReady{})
	})
	return nil
}

// Close stops scanning, cancels every link and stops the device.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.ctx.Err() != nil {
		a.mu.Unlock()
		return nil
	}
	scan := a.scan
	a.scan = nil
	dev := a.dev
	a.dev = nil
	a.mu.Unlock()

	if scan != nil {
		scan.cancel()
	}
	a.links.Range(func(_ powermeter.ConnHandle, l *link) bool {
		if l.closing.CompareAndSwap(false, true) {
			if err := l.client.CancelConnection(); err != nil {
				a.logger.WithFields(logrus.Fields{
					"address": l.address,
					"error":   NormalizeError(err),
				}).Warn("Failed to cancel connection on close")
			}
		}
		return true
	})
	a.cancel()

	if !a.wait(closeTimeout) {
		a.logger.Warn("BLE goroutines still running after close")
	}

	if dev == nil {
		return nil
	}
	return NormalizeError(dev.Stop())
}

// post delivers ev unless the adapter is closed.
func (a *Adapter) post(ev powermeter.Event) {
	select {
	case a.events <- ev:
	case <-a.ctx.Done():
	}
}

// offer delivers ev only if there is room. Used for advertisement reports,
// which are repeated by the peer anyway.
func (a *Adapter) offer(ev powermeter.Event) {
	select {
	case a.events <- ev:
	default:
		a.dropped.Add(1)
	}
}

func (a *Adapter) device() (ble.Device, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ctx.Err() != nil {
		return nil, ErrClosed
	}
	if a.dev == nil {
		return nil, ErrNotPowered
	}
	return a.dev, nil
}

func (a *Adapter) wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		a.group.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
