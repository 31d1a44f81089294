package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/powerlight/internal/bledb"
	"github.com/srg/powerlight/internal/hostble"
	"github.com/srg/powerlight/internal/powermeter"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List advertising BLE devices",
	Long: `Scan for Bluetooth Low Energy devices without connecting and list what
they advertise. Use it to find the exact name of your trainer for --target.`,
	RunE: runScan,
}

var (
	scanDuration time.Duration
	scanFormat   string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 10*time.Second, "Scan duration (0 until Ctrl+C)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
}

// scanHost is the part of the host stack a sighting scan needs.
type scanHost interface {
	PowerOn() error
	SetScanParameters(params powermeter.ScanParams) error
	StartScan() error
	StopScan() error
}

// sighting is one de-duplicated advertiser.
type sighting struct {
	Address     string    `json:"address"`
	Name        string    `json:"name,omitempty"`
	RSSI        int       `json:"rssi"`
	Connectable bool      `json:"connectable"`
	Services    []string  `json:"services,omitempty"`
	Vendor      string    `json:"vendor,omitempty"`
	LastSeen    time.Time `json:"last_seen"`
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", scanFormat)
	}

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
	if scanDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, scanDuration)
		defer cancel()
	}

	host := hostble.NewAdapter(&hostble.Options{Logger: logger})
	defer func() {
		if err := host.Close(); err != nil {
			logger.WithField("error", err).Warn("Failed to close BLE adapter")
		}
	}()

	found, err := collectSightings(ctx, host, host.Events(), host.Err, cfg.ScanParams(), logger)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return ErrNoDevices
	}

	if scanFormat == "json" {
		return writeSightingsJSON(os.Stdout, found)
	}
	return writeSightingsTable(os.Stdout, found, time.Now())
}

// collectSightings scans until ctx is done and returns every advertiser seen,
// sorted by name then address. Running out of time is not an error.
func collectSightings(ctx context.Context, host scanHost, events <-chan powermeter.Event, hostErr func() error, params powermeter.ScanParams, logger *logrus.Logger) ([]sighting, error) {
	if err := host.SetScanParameters(params); err != nil {
		logger.WithField("error", err).Warn("Host rejected scan parameters, using its defaults")
	}
	if err := host.PowerOn(); err != nil {
		return nil, err
	}

	seen := hashmap.New[string, sighting]()
	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()

	scanning := false
	for {
		select {
		case <-ctx.Done():
			if scanning {
				_ = host.StopScan()
			}
			if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(ctx.Err(), context.Canceled) {
				return sortedSightings(seen), nil
			}
			return nil, ctx.Err()

		case <-poll.C:
			if hostErr == nil {
				continue
			}
			if err := hostErr(); err != nil {
				return nil, err
			}

		case ev := <-events:
			switch ev := ev.(type) {
			case powermeter.StackReady:
				if err := host.StartScan(); err != nil {
					return nil, fmt.Errorf("failed to start scan: %w", err)
				}
				scanning = true
				logger.Debug("Scanning for devices")
			case powermeter.AdvertisementReport:
				recordSighting(seen, ev, time.Now())
			}
		}
	}
}

// recordSighting merges report into seen. Scan responses add to what the
// advertisement carried, so existing fields are only overwritten when the
// report has them.
func recordSighting(seen *hashmap.Map[string, sighting], report powermeter.AdvertisementReport, now time.Time) {
	s, _ := seen.Get(report.Address)
	s.Address = report.Address
	s.RSSI = report.RSSI
	s.LastSeen = now
	if report.EventType.Connectable() {
		s.Connectable = true
	}

	powermeter.WalkAD(report.Data, func(f powermeter.ADField) bool {
		switch f.Type {
		case powermeter.ADTypeCompleteName, powermeter.ADTypeShortName:
			s.Name = string(f.Data)
		case powermeter.ADTypeSomeUUID16, powermeter.ADTypeAllUUID16:
			for i := 0; i+1 < len(f.Data); i += 2 {
				s.Services = appendService(s.Services, binary.LittleEndian.Uint16(f.Data[i:]))
			}
		case powermeter.ADTypeManufacturerData:
			if len(f.Data) >= 2 {
				if vendor := bledb.LookupVendor(binary.LittleEndian.Uint16(f.Data)); vendor != "" {
					s.Vendor = vendor
				}
			}
		}
		return true
	})

	seen.Set(report.Address, s)
}

// appendService adds the 16-bit service uuid, named when known, unless present.
func appendService(services []string, uuid uint16) []string {
	short := fmt.Sprintf("%04x", uuid)
	label := short
	if name := bledb.LookupService(short); name != "" {
		label = name + " (" + short + ")"
	}
	for _, s := range services {
		if s == label {
			return services
		}
	}
	return append(services, label)
}

func sortedSightings(seen *hashmap.Map[string, sighting]) []sighting {
	list := make([]sighting, 0, seen.Len())
	seen.Range(func(_ string, s sighting) bool {
		list = append(list, s)
		return true
	})
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			// Named devices first.
			if list[i].Name == "" || list[j].Name == "" {
				return list[j].Name == ""
			}
			return list[i].Name < list[j].Name
		}
		return list[i].Address < list[j].Address
	})
	return list
}

func writeSightingsTable(out io.Writer, list []sighting, now time.Time) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tCONN\tSERVICES\tVENDOR\tLAST SEEN")
	fmt.Fprintln(w, strings.Repeat("-", 80))

	for _, s := range list {
		name := s.Name
		if name == "" {
			name = "-"
		}
		if len(name) > 20 {
			name = name[:17] + "..."
		}
		services := strings.Join(s.Services, ",")
		if len(services) > 30 {
			services = services[:27] + "..."
		}
		conn := "no"
		if s.Connectable {
			conn = "yes"
		}
		lastSeen := now.Sub(s.LastSeen).Truncate(time.Second)

		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%s\t%s\t%s\t%s ago\n",
			name, s.Address, s.RSSI, conn, services, s.Vendor, lastSeen)
	}

	return w.Flush()
}

func writeSightingsJSON(out io.Writer, list []sighting) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}
