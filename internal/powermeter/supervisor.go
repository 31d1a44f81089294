package powermeter

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

func (c *Client) handleStackReady() {
	if c.phase != LinkIdle {
		c.logger.WithField("phase", c.phase).Debug("Ignoring repeated stack ready")
		return
	}
	c.logger.WithField("target", c.target.Name).Info("BLE enabled, scanning for target")
	c.startScan()
}

func (c *Client) startScan() {
	if err := c.host.StartScan(); err != nil {
		c.logger.WithField("error", err).Error("Failed to start scan")
		c.phase = LinkIdle
		return
	}
	c.phase = LinkScanning
}

func (c *Client) connectTo(address string, addrType AddressType) {
	c.logger.WithFields(logrus.Fields{
		"address":      address,
		"address_type": addrType,
	}).Info("Found target, connecting")

	if err := c.host.StopScan(); err != nil {
		c.logger.WithField("error", err).Warn("Failed to stop scan")
	}
	c.phase = LinkConnecting
	c.address = address

	if err := c.host.Connect(address, addrType); err != nil {
		c.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Error("Connect request rejected, rescanning")
		c.address = ""
		c.startScan()
	}
}

func (c *Client) handleConnectionComplete(ev ConnectionComplete) {
	switch c.phase {
	case LinkConnecting:
	case LinkConnected:
		c.logger.WithFields(logrus.Fields{
			"handle":  fmt.Sprintf("0x%04x", uint16(ev.Handle)),
			"current": fmt.Sprintf("0x%04x", uint16(c.handle)),
		}).Warn("Ignoring second connection while one is established")
		return
	default:
		c.logger.WithFields(logrus.Fields{
			"handle": fmt.Sprintf("0x%04x", uint16(ev.Handle)),
			"phase":  c.phase,
		}).Debug("Ignoring connection without a pending connect")
		return
	}

	c.handle = ev.Handle
	c.phase = LinkConnected
	c.lastSeen = c.now()
	c.state = StateDiscoveringServices
	c.stalled = false
	c.service = nil
	c.characteristic = nil
	c.subscription = nil

	c.logger.WithFields(logrus.Fields{
		"address": c.address,
		"handle":  fmt.Sprintf("0x%04x", uint16(ev.Handle)),
	}).Info("Connected, discovering services")

	// Unfiltered on purpose: some peripherals reject discovery by UUID.
	if err := c.host.DiscoverPrimaryServices(ev.Handle); err != nil {
		c.logger.WithField("error", err).Error("Service discovery request rejected")
	}
}

// handleDisconnection tears the whole connection down in one step and
// rescans. Any completion still in flight for the old link no longer matches
// the state and is dropped.
func (c *Client) handleDisconnection(ev DisconnectionComplete) {
	c.logger.WithFields(logrus.Fields{
		"handle": fmt.Sprintf("0x%04x", uint16(ev.Handle)),
		"reason": fmt.Sprintf("0x%02x", ev.Reason),
		"state":  c.state,
	}).Info("Disconnected, rescanning")

	c.handle = InvalidHandle
	c.address = ""
	c.state = StateIdle
	c.stalled = false
	c.service = nil
	c.characteristic = nil
	c.subscription = nil
	c.phase = LinkIdle

	c.startScan()
}
