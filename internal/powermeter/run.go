package powermeter

import (
	"context"
	"time"
)

// Run starts the client and serves it until ctx is done or events is closed.
// It is the only goroutine that touches c: host events and watchdog polls are
// serialized here. period must not exceed LivenessTimeout/2; zero or negative
// selects one second.
func Run(ctx context.Context, c *Client, events <-chan Event, period time.Duration) error {
	if period <= 0 {
		period = time.Second
	}
	if err := c.Start(); err != nil {
		return err
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return ErrEventsClosed
			}
			c.HandleEvent(ev)
		case <-ticker.C:
			c.CheckWatchdog(c.now())
		}
	}
}
