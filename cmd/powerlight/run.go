package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/srg/powerlight/internal/config"
	"github.com/srg/powerlight/internal/display"
	"github.com/srg/powerlight/internal/groutine"
	"github.com/srg/powerlight/internal/hostble"
	"github.com/srg/powerlight/internal/hue"
	"github.com/srg/powerlight/internal/lighting"
	"github.com/srg/powerlight/internal/powermeter"
	"github.com/srg/powerlight/internal/ringchan"
)

const (
	heartbeatPeriod = time.Second
	powerBuffer     = 16
	hueOffTimeout   = 3 * time.Second
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Follow the trainer and light the current power zone",
	Long: `Scans for the configured trainer, connects, subscribes to Cycling Power
Measurement notifications and drives the terminal display and the Hue
light group. The link is re-established whenever it drops or goes quiet.

Keys: y toggles the FTP display, a/b raise and lower FTP while it is shown,
q quits.`,
	RunE: runPowerlight,
}

func runPowerlight(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := configureLogger(cfg)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	host := hostble.NewAdapter(&hostble.Options{Logger: logger})
	defer func() {
		if err := host.Close(); err != nil {
			logger.WithField("error", err).Warn("Failed to close BLE adapter")
		}
	}()

	return runSession(ctx, &session{
		cfg:     cfg,
		logger:  logger,
		host:    host,
		events:  host.Events(),
		hostErr: host.Err,
		in:      os.Stdin,
		out:     os.Stdout,
	})
}

// session is one run of the power meter loop and its consumers.
type session struct {
	cfg     *config.Config
	logger  *logrus.Logger
	host    powermeter.HostStack
	events  <-chan powermeter.Event
	hostErr func() error
	in      io.Reader
	out     io.Writer

	// hueOptions overrides the Hue transport and clock.
	hueOptions *hue.Options
}

func runSession(parent context.Context, s *session) error {
	target, err := s.cfg.PowermeterTarget()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	disp := display.New(&display.Options{Out: s.out, LogLines: s.cfg.Display.LogLines})
	power := ringchan.New[uint16](powerBuffer)
	defer power.Close()

	params := s.cfg.ScanParams()
	client, err := powermeter.NewClient(s.host, target, &powermeter.Options{
		Logger:         s.logger,
		ScanParams:     &params,
		OnPowerUpdate:  func(watts uint16) { power.Send(watts) },
		OnScanSighting: disp.LogSighting,
		OnFailure: func(err error) {
			s.logger.WithField("error", err).Warn("Trainer discovery failed, waiting for reconnect")
		},
	})
	if err != nil {
		return err
	}

	lightOpts := &lighting.Options{
		Logger:          s.logger,
		FTP:             s.cfg.Rider.FTP,
		SmoothingWindow: s.cfg.Rider.SmoothingWindow,
		Display:         disp,
		Link:            func() powermeter.LinkPhase { return client.Status().Phase },
	}

	if s.cfg.Hue.Enabled {
		bridge, err := s.newHue()
		if err != nil {
			return err
		}
		defer func() {
			offCtx, offCancel := context.WithTimeout(context.Background(), hueOffTimeout)
			defer offCancel()
			if err := bridge.TurnOff(offCtx); err != nil {
				s.logger.WithField("error", err).Warn("Failed to turn off Hue lights")
			}
			bridge.Close()
		}()
		lightOpts.Light = bridge
	}

	ctrl := lighting.New(power, lightOpts)

	var workers groutine.Group
	workers.Go(ctx, "lighting", func(ctx context.Context) {
		_ = ctrl.Run(ctx)
	})
	workers.Go(ctx, "heartbeat", func(ctx context.Context) {
		if err := heartbeat(ctx, heartbeatPeriod, client, ctrl, s.hostErr, s.logger); err != nil {
			cancel(err)
		}
	})
	if s.in != nil {
		restore := startKeypad(ctx, s.in, ctrl, func() { cancel(context.Canceled) }, s.logger)
		defer restore()
	}

	s.logger.WithField("target", target.Name).Info("Looking for trainer")
	err = powermeter.Run(ctx, client, s.events, s.cfg.Watchdog.Period)
	cancel(err)
	workers.Wait()

	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}

func (s *session) newHue() (*hue.Client, error) {
	opts := &hue.Options{Logger: s.logger}
	if s.hueOptions != nil {
		opts.HTTPClient = s.hueOptions.HTTPClient
		opts.Clock = s.hueOptions.Clock
	}
	return hue.New(hue.Config{
		Address:        s.cfg.Hue.Address,
		User:           s.cfg.Hue.User,
		Group:          s.cfg.Hue.Group,
		UpdateInterval: s.cfg.Hue.UpdateInterval,
		StuckAfter:     s.cfg.Hue.StuckAfter,
		RequestTimeout: s.cfg.Hue.RequestTimeout,
	}, opts)
}

// statusSource is the part of powermeter.Client the heartbeat reads.
type statusSource interface {
	Status() powermeter.Status
}

// heartbeat logs the rider state once per period while connected and
// refreshes the display. It returns the host failure, if any, that makes
// further waiting pointless.
func heartbeat(ctx context.Context, period time.Duration, src statusSource, ctrl *lighting.Controller, hostErr func() error, logger *logrus.Logger) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	wasConnected := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if hostErr != nil {
			if err := hostErr(); err != nil {
				return fmt.Errorf("bluetooth unavailable: %w", err)
			}
		}

		st := src.Status()
		if wasConnected && !st.Connected {
			ctrl.Reset()
		}
		wasConnected = st.Connected

		if st.Connected {
			r := ctrl.Reading()
			logger.WithFields(logrus.Fields{
				"connected": st.Connected,
				"power":     r.Smoothed,
				"zone":      r.Zone.Number,
				"ftp":       r.FTP,
			}).Info("Heartbeat")
		}
		ctrl.Refresh()
	}
}

// startKeypad reads rider keys from in, switching a terminal to raw mode.
// The returned func restores the terminal. The reader goroutine is not
// tracked: a blocked terminal read cannot be interrupted.
func startKeypad(ctx context.Context, in io.Reader, ctrl *lighting.Controller, quit func(), logger *logrus.Logger) (restore func()) {
	restore = func() {}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		old, err := term.MakeRaw(fd)
		if err != nil {
			logger.WithField("error", err).Warn("Failed to enable raw terminal mode, keys need Enter")
		} else {
			restore = func() { _ = term.Restore(fd, old) }
		}
	}

	groutine.Go(ctx, "keypad", func(ctx context.Context) {
		readKeys(ctx, in, ctrl, quit)
	})
	return restore
}

// readKeys applies key presses until quit, EOF or ctx is done.
func readKeys(ctx context.Context, in io.Reader, ctrl *lighting.Controller, quit func()) {
	buf := make([]byte, 16)
	for {
		n, err := in.Read(buf)
		if ctx.Err() != nil {
			return
		}
		for _, b := range buf[:n] {
			action, ok := lighting.ParseKey(b)
			if !ok {
				continue
			}
			if action == lighting.ActionQuit {
				quit()
				return
			}
			ctrl.Apply(action)
		}
		if err != nil {
			return
		}
	}
}
