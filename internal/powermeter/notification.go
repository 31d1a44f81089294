package powermeter

import "encoding/binary"

// ParsePower decodes the instantaneous power of a Cycling Power Measurement:
// a signed 16-bit little-endian value after the 2-byte flags field. The value
// is returned reinterpreted as unsigned.
func ParsePower(payload []byte) (uint16, bool) {
	if len(payload) < 4 {
		return 0, false
	}
	return uint16(int16(binary.LittleEndian.Uint16(payload[2:4]))), true
}

func (c *Client) handleNotification(ev Notification) {
	if !c.appliesTo(ev.Handle) || c.state != StateSubscribed {
		return
	}
	if ev.ValueHandle != c.characteristic.ValueHandle {
		return
	}

	watts, ok := ParsePower(ev.Payload)
	if !ok {
		// Short reports happen now and then; they are not liveness.
		c.logger.WithField("length", len(ev.Payload)).Debug("Dropping short power notification")
		return
	}

	c.lastSeen = c.now()
	if c.onPower != nil {
		c.onPower(watts)
	}
}
