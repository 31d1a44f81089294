package hostble

import (
	"context"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/powerlight/internal/bledb"
	"github.com/srg/powerlight/internal/powermeter"
)

// DiscoverPrimaryServices discovers every primary service and posts a
// ServiceFound for each, then a DiscoveryComplete.
func (a *Adapter) DiscoverPrimaryServices(handle powermeter.ConnHandle) error {
	l, err := a.link(handle)
	if err != nil {
		return err
	}

	a.group.Go(a.ctx, "ble-discover-services", func(ctx context.Context) {
		l.att.Lock()
		defer l.att.Unlock()

		services, err := l.client.DiscoverServices(nil)
		if err != nil {
			err = NormalizeError(err)
			a.logger.WithFields(logrus.Fields{
				"address": l.address,
				"error":   err,
			}).Warn("Service discovery failed")
			a.post(powermeter.DiscoveryComplete{Handle: handle, Status: attStatus(err)})
			return
		}

		for _, svc := range services {
			start := l.attHandle(svc.Handle)
			end := powermeter.AttHandle(svc.EndHandle)
			if end < start {
				end = start
			}
			l.services.Set(start, svc)

			a.logger.WithFields(logrus.Fields{
				"service_uuid": svc.UUID.String(),
				"name":         bledb.LookupService(svc.UUID.String()),
			}).Debug("Found service")
			a.post(powermeter.ServiceFound{Handle: handle, UUID: svc.UUID, Start: start, End: end})
		}
		a.post(powermeter.DiscoveryComplete{Handle: handle})
	})
	return nil
}

// DiscoverCharacteristics discovers the characteristics of a service found
// earlier on the same link.
func (a *Adapter) DiscoverCharacteristics(handle powermeter.ConnHandle, service powermeter.Service) error {
	l, err := a.link(handle)
	if err != nil {
		return err
	}
	svc, ok := l.services.Get(service.Start)
	if !ok {
		return ErrUnknownAttribute
	}

	a.group.Go(a.ctx, "ble-discover-characteristics", func(ctx context.Context) {
		l.att.Lock()
		defer l.att.Unlock()

		chars, err := l.client.DiscoverCharacteristics(nil, svc)
		if err != nil {
			err = NormalizeError(err)
			a.logger.WithFields(logrus.Fields{
				"service_uuid": svc.UUID.String(),
				"error":        err,
			}).Warn("Characteristic discovery failed")
			a.post(powermeter.DiscoveryComplete{Handle: handle, Status: attStatus(err)})
			return
		}

		for _, c := range chars {
			vh := l.attHandle(c.ValueHandle)
			l.chars.Set(vh, c)

			a.logger.WithFields(logrus.Fields{
				"char_uuid":    c.UUID.String(),
				"name":         bledb.LookupCharacteristic(c.UUID.String()),
				"value_handle": uint16(vh),
			}).Debug("Found characteristic")
			a.post(powermeter.CharacteristicFound{Handle: handle, UUID: c.UUID, ValueHandle: vh, Properties: c.Property})
		}
		a.post(powermeter.DiscoveryComplete{Handle: handle})
	})
	return nil
}

// RegisterNotificationListener routes values of char to the events channel
// once notifications are enabled.
func (a *Adapter) RegisterNotificationListener(handle powermeter.ConnHandle, char powermeter.Characteristic) (powermeter.Subscription, error) {
	l, err := a.link(handle)
	if err != nil {
		return powermeter.Subscription{}, err
	}
	if _, ok := l.chars.Get(char.ValueHandle); !ok {
		return powermeter.Subscription{}, ErrUnknownAttribute
	}

	id := a.nextSub.Add(1)
	l.subs.Set(char.ValueHandle, id)
	return powermeter.Subscription{ID: id, ValueHandle: char.ValueHandle}, nil
}

// WriteClientCharacteristicConfig enables or disables notifications of char
// and posts a DiscoveryComplete with the outcome.
func (a *Adapter) WriteClientCharacteristicConfig(handle powermeter.ConnHandle, char powermeter.Characteristic, enableNotify bool) error {
	l, err := a.link(handle)
	if err != nil {
		return err
	}
	c, ok := l.chars.Get(char.ValueHandle)
	if !ok {
		return ErrUnknownAttribute
	}

	a.group.Go(a.ctx, "ble-write-cccd", func(ctx context.Context) {
		l.att.Lock()
		defer l.att.Unlock()

		a.ensureCCCD(l, c)

		var err error
		if enableNotify {
			err = l.client.Subscribe(c, false, a.notificationHandler(l, char.ValueHandle))
		} else {
			err = l.client.Unsubscribe(c, false)
			l.subs.Del(char.ValueHandle)
		}
		if err != nil {
			err = NormalizeError(err)
			a.logger.WithFields(logrus.Fields{
				"char_uuid": c.UUID.String(),
				"enable":    enableNotify,
				"error":     err,
			}).Warn("CCCD write failed")
		}
		a.post(powermeter.DiscoveryComplete{Handle: handle, Status: attStatus(err)})
	})
	return nil
}

// ensureCCCD locates the CCCD of c. Peripherals that omit it from descriptor
// discovery keep it right after the value handle.
func (a *Adapter) ensureCCCD(l *link, c *ble.Characteristic) {
	if c.CCCD != nil {
		return
	}
	if _, err := l.client.DiscoverDescriptors(nil, c); err != nil {
		a.logger.WithFields(logrus.Fields{
			"char_uuid": c.UUID.String(),
			"error":     NormalizeError(err),
		}).Debug("Descriptor discovery failed")
	}
	if c.CCCD != nil || c.ValueHandle == 0 {
		return
	}

	c.CCCD = &ble.Descriptor{UUID: ble.ClientCharacteristicConfigUUID, Handle: c.ValueHandle + 1}
	a.logger.WithFields(logrus.Fields{
		"char_uuid":   c.UUID.String(),
		"cccd_handle": c.CCCD.Handle,
	}).Debug("No CCCD reported, assuming the handle after the value")
}

func (a *Adapter) notificationHandler(l *link, valueHandle powermeter.AttHandle) ble.NotificationHandler {
	return func(data []byte) {
		if _, ok := l.subs.Get(valueHandle); !ok || l.closed.Load() {
			return
		}
		payload := make([]byte, len(data))
		copy(payload, data)
		a.post(powermeter.Notification{Handle: l.handle, ValueHandle: valueHandle, Payload: payload})
	}
}
