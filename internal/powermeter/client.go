package powermeter

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// LivenessTimeout is how long a connected link may go without an accepted
// notification before the watchdog forces a disconnect.
const LivenessTimeout = 5000 * time.Millisecond

// Target identifies the peripheral, service and characteristic to follow.
type Target struct {
	Name           string
	Service        uint16
	Characteristic uint16
}

// DefaultTarget returns the trainer this project was built around, with the
// Cycling Power service and Cycling Power Measurement characteristic.
func DefaultTarget() Target {
	return Target{
		Name:           "KICKR CORE 5D21",
		Service:        0x1818,
		Characteristic: 0x2A63,
	}
}

// Options configures a Client. Every field is optional.
type Options struct {
	Logger     *logrus.Logger
	Clock      func() time.Time
	ScanParams *ScanParams

	// OnPowerUpdate receives every accepted instantaneous power value.
	OnPowerUpdate func(watts uint16)
	// OnScanSighting receives every advertised name, target or not.
	OnScanSighting func(address, name string)
	// OnFailure receives recoverable discovery failures.
	OnFailure func(err error)
}

// Client is the connection lifecycle and discovery state machine.
type Client struct {
	host       HostStack
	target     Target
	targetName []byte
	scanParams ScanParams
	logger     *logrus.Logger
	now        func() time.Time

	onPower    func(uint16)
	onSighting func(string, string)
	onFailure  func(error)

	phase          LinkPhase
	address        string
	handle         ConnHandle
	state          DiscoveryState
	stalled        bool
	service        *Service
	characteristic *Characteristic
	subscription   *Subscription
	lastSeen       time.Time

	connected atomic.Bool
	status    atomic.Pointer[Status]
}

// NewClient creates a Client issuing commands to host.
func NewClient(host HostStack, target Target, opts *Options) (*Client, error) {
	if host == nil {
		return nil, ErrNilHost
	}
	if target.Name == "" {
		return nil, ErrEmptyTargetName
	}
	if target.Service == 0 || target.Characteristic == 0 {
		return nil, ErrZeroUUID
	}
	if opts == nil {
		opts = &Options{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	params := DefaultScanParams()
	if opts.ScanParams != nil {
		params = *opts.ScanParams
	}

	c := &Client{
		host:       host,
		target:     target,
		targetName: []byte(target.Name),
		scanParams: params,
		logger:     logger,
		now:        clock,
		onPower:    opts.OnPowerUpdate,
		onSighting: opts.OnScanSighting,
		onFailure:  opts.OnFailure,
		handle:     InvalidHandle,
	}
	c.publish()
	return c, nil
}

// Start configures scanning and powers the host stack on. Scanning begins on
// StackReady, not here: the stack rejects scan commands until it is working.
func (c *Client) Start() error {
	if err := c.host.SetScanParameters(c.scanParams); err != nil {
		c.logger.WithField("error", err).Warn("Host rejected scan parameters, using its defaults")
	}
	if err := c.host.PowerOn(); err != nil {
		return err
	}
	c.logger.WithField("target", c.target.Name).Info("Powering on BLE host")
	return nil
}

// HandleEvent routes one host event to the layer it belongs to.
// It never fails: problems are logged and absorbed.
func (c *Client) HandleEvent(ev Event) {
	switch e := ev.(type) {
	case StackReady:
		c.handleStackReady()
	case AdvertisementReport:
		c.handleAdvertisement(e)
	case ConnectionComplete:
		c.handleConnectionComplete(e)
	case DisconnectionComplete:
		c.handleDisconnection(e)
	case ServiceFound:
		c.handleServiceFound(e)
	case CharacteristicFound:
		c.handleCharacteristicFound(e)
	case DiscoveryComplete:
		c.handleDiscoveryComplete(e)
	case Notification:
		c.handleNotification(e)
	default:
		c.logger.WithField("event", EventName(ev)).Debug("Ignoring unknown host event")
	}
	c.publish()
}

// IsConnected reports whether a link is established. It does not imply that
// notifications are flowing.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Status returns the state published after the last handled event or poll.
func (c *Client) Status() Status {
	return *c.status.Load()
}

// Target returns the configured target.
func (c *Client) Target() Target {
	return c.target
}

func (c *Client) publish() {
	c.connected.Store(c.phase == LinkConnected)
	c.status.Store(&Status{
		Phase:     c.phase,
		State:     c.state,
		Handle:    c.handle,
		Connected: c.phase == LinkConnected,
		Address:   c.address,
		LastSeen:  c.lastSeen,
	})
}

func (c *Client) fail(err error) {
	if c.onFailure != nil {
		c.onFailure(err)
	}
}
