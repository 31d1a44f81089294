package powermeter

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// appliesTo reports whether a discovery event belongs to the live link.
func (c *Client) appliesTo(handle ConnHandle) bool {
	return c.phase == LinkConnected && handle == c.handle
}

func (c *Client) handleServiceFound(ev ServiceFound) {
	if !c.appliesTo(ev.Handle) || c.state != StateDiscoveringServices || c.stalled {
		return
	}
	if !matchesShortUUID(ev.UUID, c.target.Service) {
		c.logger.WithField("service_uuid", ev.UUID.String()).Debug("Skipping service")
		return
	}

	c.service = &Service{Start: ev.Start, End: ev.End, UUID: ev.UUID}
	c.logger.WithFields(logrus.Fields{
		"service_uuid": ev.UUID.String(),
		"start":        fmt.Sprintf("0x%04x", uint16(ev.Start)),
		"end":          fmt.Sprintf("0x%04x", uint16(ev.End)),
	}).Debug("Found target service")
}

func (c *Client) handleCharacteristicFound(ev CharacteristicFound) {
	if !c.appliesTo(ev.Handle) || c.state != StateDiscoveringCharacteristics {
		return
	}
	if !matchesShortUUID(ev.UUID, c.target.Characteristic) {
		c.logger.WithField("char_uuid", ev.UUID.String()).Debug("Skipping characteristic")
		return
	}

	c.characteristic = &Characteristic{ValueHandle: ev.ValueHandle, UUID: ev.UUID}
	c.logger.WithFields(logrus.Fields{
		"char_uuid":    ev.UUID.String(),
		"value_handle": fmt.Sprintf("0x%04x", uint16(ev.ValueHandle)),
	}).Debug("Found target characteristic")
}

func (c *Client) handleDiscoveryComplete(ev DiscoveryComplete) {
	if !c.appliesTo(ev.Handle) {
		return
	}
	if ev.Status != 0 {
		c.logger.WithFields(logrus.Fields{
			"state":  c.state,
			"status": fmt.Sprintf("0x%02x", ev.Status),
		}).Warn("Discovery step completed with error status")
	}

	switch c.state {
	case StateDiscoveringServices:
		c.servicesDone()
	case StateDiscoveringCharacteristics:
		c.characteristicsDone()
	case StateSubscribing:
		c.state = StateSubscribed
		c.logger.WithField("value_handle", fmt.Sprintf("0x%04x", uint16(c.characteristic.ValueHandle))).
			Info("Subscribed to power notifications")
	case StateIdle, StateSubscribed:
		// nothing in flight
	}
}

func (c *Client) servicesDone() {
	if c.stalled {
		return
	}
	if c.service == nil {
		// Stall until the link drops; the next connection starts over.
		c.stalled = true
		c.logger.WithField("service", fmt.Sprintf("0x%04x", c.target.Service)).Error("Service not found")
		c.fail(fmt.Errorf("%w: %w", ErrServiceNotFound, &NotFoundError{Resource: "service", UUID: c.target.Service}))
		return
	}

	c.state = StateDiscoveringCharacteristics
	c.logger.Info("Discovering characteristics")
	if err := c.host.DiscoverCharacteristics(c.handle, *c.service); err != nil {
		c.logger.WithField("error", err).Error("Characteristic discovery request rejected")
	}
}

func (c *Client) characteristicsDone() {
	if c.characteristic == nil {
		c.state = StateIdle
		c.logger.WithField("characteristic", fmt.Sprintf("0x%04x", c.target.Characteristic)).Error("Characteristic not found")
		c.fail(fmt.Errorf("%w: %w", ErrCharacteristicNotFound, &NotFoundError{Resource: "characteristic", UUID: c.target.Characteristic}))
		return
	}

	c.state = StateSubscribing
	if c.subscription == nil {
		sub, err := c.host.RegisterNotificationListener(c.handle, *c.characteristic)
		if err != nil {
			c.logger.WithField("error", err).Error("Failed to register notification listener")
		} else {
			c.subscription = &sub
		}
	}

	c.logger.Info("Enabling notifications")
	if err := c.host.WriteClientCharacteristicConfig(c.handle, *c.characteristic, true); err != nil {
		c.logger.WithField("error", err).Error("CCCD write rejected")
	}
}
