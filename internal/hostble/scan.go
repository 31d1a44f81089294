package hostble

import (
	"context"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/powerlight/internal/powermeter"
)

type scanSession struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Optional ble.Advertisement extensions implemented by the HCI backend.
type (
	eventTyper   interface{ EventType() uint8 }
	addressTyper interface{ AddressType() uint8 }
)

// StartScan starts a duplicate-reporting scan. Reports are posted as
// AdvertisementReport events and dropped when the consumer is behind.
func (a *Adapter) StartScan() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ctx.Err() != nil {
		return ErrClosed
	}
	if a.dev == nil {
		return ErrNotPowered
	}
	if a.scan != nil {
		return nil
	}

	dev := a.dev
	scanCtx, cancel := context.WithCancel(a.ctx)
	s := &scanSession{cancel: cancel, done: make(chan struct{})}
	a.scan, a.lastScan = s, s
	seen := hashmap.New[string, ble.Addr]()
	a.seen = seen

	a.group.Go(scanCtx, "ble-scan", func(ctx context.Context) {
		defer close(s.done)

		err := dev.Scan(ctx, true, func(adv ble.Advertisement) {
			report := advertisementReport(adv)
			seen.Set(report.Address, adv.Addr())
			if a.logger.IsLevelEnabled(logrus.TraceLevel) {
				a.logReport(report)
			}
			a.offer(report)
		})

		a.mu.Lock()
		if a.scan == s {
			a.scan = nil
		}
		if err != nil && ctx.Err() == nil {
			a.err = NormalizeError(err)
		}
		a.mu.Unlock()

		// Darwin returns an error even when the context was cancelled.
		if err != nil && ctx.Err() == nil {
			a.logger.WithField("error", err).Error("Scan stopped unexpectedly")
		}
	})

	a.logger.Debug("Scan started")
	return nil
}

// StopScan cancels the active scan without waiting for it to wind down.
// Connect waits for that before dialing.
func (a *Adapter) StopScan() error {
	a.mu.Lock()
	s := a.scan
	a.scan = nil
	a.mu.Unlock()

	if s != nil {
		s.cancel()
		a.logger.Debug("Scan stopped")
	}
	return nil
}

// advertisementReport converts a go-ble advertisement to the host event.
// Backends that do not report the PDU type are mapped by connectability.
func advertisementReport(adv ble.Advertisement) powermeter.AdvertisementReport {
	report := powermeter.AdvertisementReport{
		Address:     adv.Addr().String(),
		AddressType: powermeter.AddressPublic,
		EventType:   powermeter.AdvNonconnInd,
		RSSI:        adv.RSSI(),
		Data:        EncodeAD(adv),
	}
	if adv.Connectable() {
		report.EventType = powermeter.AdvInd
	}
	if t, ok := adv.(eventTyper); ok {
		report.EventType = powermeter.AdvEventType(t.EventType())
	}
	if t, ok := adv.(addressTyper); ok && t.AddressType() == uint8(powermeter.AddressRandom) {
		report.AddressType = powermeter.AddressRandom
	}
	return report
}

func (a *Adapter) logReport(report powermeter.AdvertisementReport) {
	name, _ := powermeter.LocalName(report.Data)
	a.logger.WithFields(logrus.Fields{
		"address": report.Address,
		"name":    name,
		"rssi":    report.RSSI,
	}).Trace("Advertisement")
}
