// Package hue drives a Philips Hue light group from zone colors.
//
// Updates are fire-and-forget and throttled so a fast power stream does not
// flood the bridge: at most one request per UpdateInterval, none while a
// request is in flight, and none when the color did not change.
package hue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/powerlight/internal/groutine"
	"github.com/srg/powerlight/internal/zones"
)

const (
	DefaultUpdateInterval = time.Second
	DefaultStuckAfter     = 5 * time.Second
	DefaultRequestTimeout = 4 * time.Second
)

var (
	ErrNoAddress = errors.New("hue bridge address is empty")
	ErrNoUser    = errors.New("hue user is empty")
	ErrBridge    = errors.New("hue bridge error")
)

// Config locates the light group on the bridge.
type Config struct {
	Address        string
	User           string
	Group          string
	UpdateInterval time.Duration
	StuckAfter     time.Duration
	RequestTimeout time.Duration
}

// Options are optional collaborators of a Client.
type Options struct {
	Logger     *logrus.Logger
	HTTPClient *http.Client
	Clock      func() time.Time
}

// Client sends group actions to a Hue bridge.
type Client struct {
	cfg      Config
	endpoint string
	http     *http.Client
	logger   *logrus.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	group  groutine.Group

	mu         sync.Mutex
	first      bool
	lastUpdate time.Time
	lastColor  zones.Color
	inFlight   bool
	generation uint64

	reachable atomic.Bool
	sent      atomic.Int64
}

// groupAction is the body of PUT /api/<user>/groups/<group>/action.
type groupAction struct {
	On  bool    `json:"on"`
	Sat *uint8  `json:"sat,omitempty"`
	Bri *uint8  `json:"bri,omitempty"`
	Hue *uint16 `json:"hue,omitempty"`
}

// bridgeResult is one element of the bridge's response array.
type bridgeResult struct {
	Error *struct {
		Type        int    `json:"type"`
		Address     string `json:"address"`
		Description string `json:"description"`
	} `json:"error,omitempty"`
}

// New creates a Client. Zero durations select the defaults.
func New(cfg Config, opts *Options) (*Client, error) {
	if cfg.Address == "" {
		return nil, ErrNoAddress
	}
	if cfg.User == "" {
		return nil, ErrNoUser
	}
	if cfg.Group == "" {
		cfg.Group = "0"
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = DefaultUpdateInterval
	}
	if cfg.StuckAfter <= 0 {
		cfg.StuckAfter = DefaultStuckAfter
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if opts == nil {
		opts = &Options{}
	}

	endpoint := fmt.Sprintf("http://%s/api/%s/groups/%s/action",
		cfg.Address, url.PathEscape(cfg.User), url.PathEscape(cfg.Group))

	c := &Client{
		cfg:      cfg,
		endpoint: endpoint,
		http:     opts.HTTPClient,
		logger:   opts.Logger,
		now:      opts.Clock,
		first:    true,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.logger == nil {
		c.logger = logrus.New()
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.logger.WithFields(logrus.Fields{
		"address": cfg.Address,
		"group":   cfg.Group,
	}).Info("Hue client initialized")
	return c, nil
}

// Update requests the group to show color. It never blocks; it reports
// whether a request was started.
func (c *Client) Update(color zones.Color) bool {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx.Err() != nil {
		return false
	}
	since := now.Sub(c.lastUpdate)
	if !c.first && since < c.cfg.UpdateInterval {
		return false
	}
	if c.inFlight {
		if since <= c.cfg.StuckAfter {
			c.logger.Debug("Hue request in progress, skipping")
			return false
		}
		c.logger.WithField("age", since.Round(time.Millisecond)).Warn("Hue request stuck, forcing reset")
		c.inFlight = false
	}
	if !c.first && color == c.lastColor {
		if since > c.cfg.StuckAfter {
			c.lastUpdate = now
		}
		return false
	}

	c.first = false
	c.lastUpdate = now
	c.lastColor = color
	c.inFlight = true
	c.generation++
	gen := c.generation

	action := actionFor(color)
	c.group.Go(c.ctx, "hue-update", func(ctx context.Context) {
		err := c.send(ctx, action)

		c.mu.Lock()
		if c.generation == gen {
			c.inFlight = false
		}
		c.mu.Unlock()

		if err != nil {
			c.logger.WithFields(logrus.Fields{
				"color": color.String(),
				"error": err,
			}).Warn("Hue update failed")
		}
	})
	return true
}

// TurnOff switches the group off synchronously, bypassing the throttle.
func (c *Client) TurnOff(ctx context.Context) error {
	return c.send(ctx, groupAction{On: false})
}

// Reachable reports whether the last request succeeded.
func (c *Client) Reachable() bool {
	return c.reachable.Load()
}

// Sent returns the number of requests issued.
func (c *Client) Sent() int64 {
	return c.sent.Load()
}

// Close abandons pending requests and waits for their goroutines.
func (c *Client) Close() {
	c.cancel()
	c.group.Wait()
}

// Wait blocks until in-flight requests finish.
func (c *Client) Wait() {
	c.group.Wait()
}

func actionFor(color zones.Color) groupAction {
	h, s, b := ToHueSatBri(color)
	if b == 0 {
		return groupAction{On: false}
	}
	return groupAction{On: true, Sat: &s, Bri: &b, Hue: &h}
}

func (c *Client) send(ctx context.Context, action groupAction) error {
	c.sent.Add(1)
	err := c.put(ctx, action)
	c.reachable.Store(err == nil)
	return err
}

func (c *Client) put(ctx context.Context, action groupAction) error {
	body, err := json.Marshal(action)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.WithField("body", string(body)).Debug("Hue request")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("hue request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("failed to read hue response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrBridge, resp.StatusCode)
	}

	var results []bridgeResult
	if err := json.Unmarshal(raw, &results); err != nil {
		// Older firmware answers with an object; treat anything 200 as accepted.
		c.logger.WithField("response", string(raw)).Debug("Unrecognized hue response")
		return nil
	}
	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("%w: %s (type %d, %s)", ErrBridge, r.Error.Description, r.Error.Type, r.Error.Address)
		}
	}
	return nil
}
