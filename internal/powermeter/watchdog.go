package powermeter

import (
	"time"

	"github.com/sirupsen/logrus"
)

// CheckWatchdog forces a disconnect when the link is up but nothing was
// accepted for longer than LivenessTimeout. It reports whether a disconnect
// was requested. Call it periodically, at most every LivenessTimeout/2.
func (c *Client) CheckWatchdog(now time.Time) bool {
	defer c.publish()

	if c.phase != LinkConnected {
		return false
	}
	idle := now.Sub(c.lastSeen)
	if idle <= LivenessTimeout {
		return false
	}

	c.logger.WithFields(logrus.Fields{
		"idle":  idle.Round(time.Millisecond),
		"state": c.state,
	}).Warn("Watchdog: no data, forcing disconnect")

	if err := c.host.Disconnect(c.handle); err != nil {
		c.logger.WithField("error", err).Error("Disconnect request rejected")
	}
	return true
}
