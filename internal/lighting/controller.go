// Package lighting turns the power stream into zone colors for the display
// and the Hue bridge.
package lighting

import (
	"context"
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/srg/powerlight/internal/display"
	"github.com/srg/powerlight/internal/powermeter"
	"github.com/srg/powerlight/internal/ringchan"
	"github.com/srg/powerlight/internal/zones"
)

// Light is a lamp that follows the zone color.
type Light interface {
	Update(c zones.Color) bool
	Reachable() bool
}

// Renderer shows the rider state.
type Renderer interface {
	Record(power uint16)
	Render(s display.State)
}

// Options configures a Controller.
type Options struct {
	Logger          *logrus.Logger
	Zones           []zones.Zone
	FTP             uint16
	SmoothingWindow int
	Display         Renderer
	// Light is nil when no bridge is configured.
	Light Light
	// Link reports the current connection phase.
	Link func() powermeter.LinkPhase
}

// Reading is the latest processed power value.
type Reading struct {
	Power    uint16
	Smoothed uint16
	Zone     zones.Zone
	FTP      uint16
	ShowFTP  bool
}

// Controller consumes power values and drives the outputs.
type Controller struct {
	in       *ringchan.Ring[uint16]
	logger   *logrus.Logger
	zones    []zones.Zone
	smoother *zones.Smoother
	display  Renderer
	light    Light
	link     func() powermeter.LinkPhase

	mu       sync.Mutex
	ftp      uint16
	showFTP  bool
	power    uint16
	smoothed uint16
}

// New creates a Controller reading from in.
func New(in *ringchan.Ring[uint16], opts *Options) *Controller {
	if opts == nil {
		opts = &Options{}
	}
	c := &Controller{
		in:       in,
		logger:   opts.Logger,
		zones:    opts.Zones,
		smoother: zones.NewSmoother(opts.SmoothingWindow),
		display:  opts.Display,
		light:    opts.Light,
		link:     opts.Link,
		ftp:      opts.FTP,
	}
	if c.logger == nil {
		c.logger = logrus.New()
	}
	if len(c.zones) == 0 {
		c.zones = zones.DefaultZones
	}
	if c.ftp == 0 {
		c.ftp = zones.DefaultFTP
	}
	if c.link == nil {
		c.link = func() powermeter.LinkPhase { return powermeter.LinkIdle }
	}
	return c
}

// Run processes power values until ctx is done or the ring is closed.
func (c *Controller) Run(ctx context.Context) error {
	for {
		power, ok := c.in.Receive(ctx)
		if !ok {
			return ctx.Err()
		}
		c.Process(power)
	}
}

// Process applies one raw power value.
func (c *Controller) Process(power uint16) {
	c.mu.Lock()
	smoothed := c.smoother.Add(power)
	c.power = power
	c.smoothed = smoothed
	zone := zones.For(c.zones, smoothed, c.ftp)
	c.mu.Unlock()

	if c.light != nil {
		c.light.Update(zone.Color)
	}
	if c.display != nil {
		c.display.Record(power)
	}
	c.Refresh()
}

// Refresh redraws the display from the current state.
func (c *Controller) Refresh() {
	if c.display == nil {
		return
	}
	r := c.Reading()
	hue := display.HueDisabled
	if c.light != nil {
		hue = display.HueUnreachable
		if c.light.Reachable() {
			hue = display.HueReachable
		}
	}
	c.display.Render(display.State{
		Link:    c.link(),
		Power:   r.Smoothed,
		Zone:    r.Zone,
		FTP:     r.FTP,
		ShowFTP: r.ShowFTP,
		Hue:     hue,
	})
}

// Reading returns the current state.
func (c *Controller) Reading() Reading {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Reading{
		Power:    c.power,
		Smoothed: c.smoothed,
		Zone:     zones.For(c.zones, c.smoothed, c.ftp),
		FTP:      c.ftp,
		ShowFTP:  c.showFTP,
	}
}

// FTP returns the current functional threshold power.
func (c *Controller) FTP() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ftp
}

// Reset clears the smoothing window, e.g. after a reconnect.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.smoother.Reset()
	c.power, c.smoothed = 0, 0
	c.mu.Unlock()
}

// Apply executes a rider action and reports whether the state changed.
// FTP can only be adjusted while it is shown.
func (c *Controller) Apply(a Action) bool {
	c.mu.Lock()
	changed := false
	switch a {
	case ActionToggleFTP:
		c.showFTP = !c.showFTP
		changed = true
	case ActionIncreaseFTP:
		if c.showFTP && c.ftp < math.MaxUint16 {
			c.ftp++
			changed = true
		}
	case ActionDecreaseFTP:
		if c.showFTP && c.ftp > 0 {
			c.ftp--
			changed = true
		}
	}
	ftp, show := c.ftp, c.showFTP
	c.mu.Unlock()

	if changed {
		c.logger.WithFields(logrus.Fields{
			"action": a.String(),
			"ftp":    ftp,
			"shown":  show,
		}).Info("Rider settings changed")
		c.Refresh()
	}
	return changed
}
