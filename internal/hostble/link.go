package hostble

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/powerlight/internal/powermeter"
)

// link is one established connection.
type link struct {
	handle  powermeter.ConnHandle
	address string
	client  ble.Client

	// att serializes GATT procedures; go-ble runs one at a time per client.
	att sync.Mutex

	services *hashmap.Map[powermeter.AttHandle, *ble.Service]
	chars    *hashmap.Map[powermeter.AttHandle, *ble.Characteristic]
	subs     *hashmap.Map[powermeter.AttHandle, uint32]

	// Handles invented for backends that report none (CoreBluetooth).
	synthetic atomic.Uint32

	monitored atomic.Bool
	closing   atomic.Bool
	closed    atomic.Bool
	gone      chan struct{}
}

func newLink(handle powermeter.ConnHandle, address string, client ble.Client) *link {
	l := &link{
		handle:   handle,
		address:  address,
		client:   client,
		services: hashmap.New[powermeter.AttHandle, *ble.Service](),
		chars:    hashmap.New[powermeter.AttHandle, *ble.Characteristic](),
		subs:     hashmap.New[powermeter.AttHandle, uint32](),
		gone:     make(chan struct{}),
	}
	l.synthetic.Store(0xF000)
	return l
}

// attHandle returns h, or a fresh synthetic handle when the backend left it zero.
func (l *link) attHandle(h uint16) powermeter.AttHandle {
	if h != 0 {
		return powermeter.AttHandle(h)
	}
	return powermeter.AttHandle(l.synthetic.Add(1))
}

// Connect dials address once the previous scan has wound down. The result
// is a ConnectionComplete, or a DisconnectionComplete with
// ReasonConnectionFailed so the caller rescans.
func (a *Adapter) Connect(address string, addrType powermeter.AddressType) error {
	dev, err := a.device()
	if err != nil {
		return err
	}

	a.mu.Lock()
	var addr ble.Addr
	if a.seen != nil {
		addr, _ = a.seen.Get(address)
	}
	var scanDone <-chan struct{}
	if a.lastScan != nil {
		scanDone = a.lastScan.done
	}
	a.mu.Unlock()

	if addr == nil {
		addr = ble.NewAddr(address)
	}

	a.group.Go(a.ctx, "ble-dial", func(ctx context.Context) {
		if scanDone != nil {
			select {
			case <-scanDone:
			case <-ctx.Done():
				return
			}
		}

		a.logger.WithFields(logrus.Fields{
			"address":      address,
			"address_type": addrType,
			"timeout":      a.dialTimeout,
		}).Debug("Dialing BLE device...")

		dialCtx, cancel := context.WithTimeout(ctx, a.dialTimeout)
		defer cancel()

		client, err := dev.Dial(dialCtx, addr)
		if err != nil {
			a.logger.WithFields(logrus.Fields{
				"address": address,
				"error":   NormalizeError(err),
			}).Warn("Failed to dial BLE device")
			a.post(powermeter.DisconnectionComplete{Handle: powermeter.InvalidHandle, Reason: powermeter.ReasonConnectionFailed})
			return
		}
		if ctx.Err() != nil {
			_ = client.CancelConnection()
			return
		}

		l := newLink(a.allocHandle(), address, client)
		a.links.Set(l.handle, l)
		a.monitor(l)
		a.post(powermeter.ConnectionComplete{Handle: l.handle})
	})
	return nil
}

// Disconnect cancels the link. Repeated calls while the link is going down
// are no-ops. The DisconnectionComplete comes from the link monitor, or from
// here if the platform stays silent for disconnectGrace.
func (a *Adapter) Disconnect(handle powermeter.ConnHandle) error {
	l, ok := a.links.Get(handle)
	if !ok {
		return ErrUnknownHandle
	}
	if !l.closing.CompareAndSwap(false, true) {
		return nil
	}

	a.group.Go(a.ctx, "ble-disconnect", func(ctx context.Context) {
		if err := l.client.CancelConnection(); err != nil {
			a.logger.WithFields(logrus.Fields{
				"address": l.address,
				"error":   NormalizeError(err),
			}).Warn("Failed to cancel connection")
		}

		if !l.monitored.Load() {
			a.dropLink(l, powermeter.ReasonLocalHostTerminated)
			return
		}

		timer := time.NewTimer(disconnectGrace)
		defer timer.Stop()
		select {
		case <-l.gone:
		case <-timer.C:
			a.logger.WithField("address", l.address).Warn("No disconnection report, dropping link")
			a.dropLink(l, powermeter.ReasonLocalHostTerminated)
		case <-ctx.Done():
		}
	})
	return nil
}

// monitor watches the client for a disconnection reported by the platform.
func (a *Adapter) monitor(l *link) {
	watcher, ok := l.client.(interface{ Disconnected() <-chan struct{} })
	if !ok {
		a.logger.Debug("Client does not report disconnection, relying on the watchdog")
		return
	}
	l.monitored.Store(true)

	a.group.Go(a.ctx, "ble-link-monitor", func(ctx context.Context) {
		select {
		case <-watcher.Disconnected():
			reason := powermeter.ReasonConnectionTimeout
			if l.closing.Load() {
				reason = powermeter.ReasonLocalHostTerminated
			}
			a.dropLink(l, reason)
		case <-ctx.Done():
		}
	})
}

// dropLink forgets l and reports its disconnection exactly once.
func (a *Adapter) dropLink(l *link, reason uint8) {
	if !l.closed.CompareAndSwap(false, true) {
		return
	}
	close(l.gone)
	a.links.Del(l.handle)

	a.logger.WithFields(logrus.Fields{
		"address": l.address,
		"handle":  l.handle,
		"reason":  reason,
	}).Debug("Link dropped")
	a.post(powermeter.DisconnectionComplete{Handle: l.handle, Reason: reason})
}

// link returns the live link for handle.
func (a *Adapter) link(handle powermeter.ConnHandle) (*link, error) {
	if a.ctx.Err() != nil {
		return nil, ErrClosed
	}
	l, ok := a.links.Get(handle)
	if !ok {
		return nil, ErrUnknownHandle
	}
	if l.closed.Load() {
		return nil, ErrNotConnected
	}
	return l, nil
}

func (a *Adapter) allocHandle() powermeter.ConnHandle {
	for {
		h := powermeter.ConnHandle(a.nextHandle.Add(1))
		if h == powermeter.InvalidHandle || h == 0 {
			continue
		}
		if _, taken := a.links.Get(h); !taken {
			return h
		}
	}
}
