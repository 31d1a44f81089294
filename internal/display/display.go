// Package display renders the rider status to a terminal: the recent scan
// log, a status line colored like the current zone and a power history.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/term"

	"github.com/srg/powerlight/internal/powermeter"
	"github.com/srg/powerlight/internal/zones"
)

const (
	DefaultLogLines     = 8
	DefaultHistoryWidth = 40

	// HistoryScale is the power drawn as a full bar.
	HistoryScale = 500

	clearScreen = "\033[H\033[2J"
	clearLine   = "\r\033[K"
)

// HueState is the bridge indicator.
type HueState int

const (
	HueDisabled HueState = iota
	HueReachable
	HueUnreachable
)

// State is everything shown on one frame.
type State struct {
	Link    powermeter.LinkPhase
	Power   uint16
	Zone    zones.Zone
	FTP     uint16
	ShowFTP bool
	Hue     HueState
}

// Options configures a Display.
type Options struct {
	Out          io.Writer
	LogLines     int
	HistoryWidth int
	// Color forces colored output on or off. Nil detects a terminal.
	Color *bool
}

// Display is safe for concurrent use.
type Display struct {
	mu      sync.Mutex
	out     io.Writer
	tty     bool
	colored bool
	// scan log lines by address, least recently seen first
	sightings *orderedmap.OrderedMap[string, string]
	logSize   int
	history   []uint16
	histSize  int
	last      string
}

// New creates a Display writing to opts.Out (stdout when nil).
func New(opts *Options) *Display {
	if opts == nil {
		opts = &Options{}
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	tty := isTerminal(out)

	d := &Display{
		out:       out,
		tty:       tty,
		colored:   tty,
		sightings: orderedmap.New[string, string](),
		logSize:   opts.LogLines,
		histSize:  opts.HistoryWidth,
	}
	if opts.Color != nil {
		d.colored = *opts.Color
	}
	if d.logSize <= 0 {
		d.logSize = DefaultLogLines
	}
	if d.histSize <= 0 {
		d.histSize = DefaultHistoryWidth
	}
	return d
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// LogSighting records a scan log line: the advertised name, or the address
// when the peripheral has none. A repeated advertiser moves to the end of the
// log instead of filling it.
func (d *Display) LogSighting(address, name string) {
	line := "> " + address
	if name != "" {
		line = "> " + name
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	prev, known := d.sightings.Get(address)
	d.sightings.Set(address, line)
	if known {
		_ = d.sightings.MoveToBack(address)
	}
	for d.sightings.Len() > d.logSize {
		d.sightings.Delete(d.sightings.Oldest().Key)
	}

	if !d.tty && (!known || prev != line) {
		fmt.Fprintln(d.out, line)
	}
}

// ScanLog returns the retained scan log lines, least recently seen first.
func (d *Display) ScanLog() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scanLog()
}

func (d *Display) scanLog() []string {
	lines := make([]string, 0, d.sightings.Len())
	for p := d.sightings.Oldest(); p != nil; p = p.Next() {
		lines = append(lines, p.Value)
	}
	return lines
}

// Record adds a power value to the history graph.
func (d *Display) Record(power uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = append(d.history, power)
	if len(d.history) > d.histSize {
		d.history = d.history[len(d.history)-d.histSize:]
	}
}

// Render draws s. On a terminal the whole frame is redrawn; otherwise the
// status line is written only when it changed.
func (d *Display) Render(s State) {
	d.mu.Lock()
	defer d.mu.Unlock()

	line := StatusLine(s)
	if !d.tty {
		if line == d.last {
			return
		}
		d.last = line
		fmt.Fprintln(d.out, line)
		return
	}

	var b strings.Builder
	b.WriteString(clearScreen)
	if s.Link != powermeter.LinkConnected {
		for _, l := range d.scanLog() {
			b.WriteString(l)
			b.WriteString("\r\n")
		}
		b.WriteString("\r\n")
	}
	b.WriteString(d.paintStatus(s))
	b.WriteString("\r\n")
	b.WriteString(Sparkline(d.history))
	b.WriteString(clearLine)
	fmt.Fprint(d.out, b.String())
}

// paintStatus colors the status line with the zone color as background and
// black or white text depending on its brightness.
func (d *Display) paintStatus(s State) string {
	zc := s.Zone.Color
	c := color.BgRGB(int(zc.R), int(zc.G), int(zc.B))
	if zc.Luma() > 128 {
		c.Add(color.FgBlack)
	} else {
		c.Add(color.FgWhite)
	}
	if d.colored {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(" " + StatusLine(s) + " ")
}

// StatusLine formats s without colors, e.g. "Connected | 100 W | Z2 | Hue ok".
func StatusLine(s State) string {
	parts := []string{
		linkLabel(s.Link),
		fmt.Sprintf("%d W", s.Power),
		fmt.Sprintf("Z%d", s.Zone.Number),
	}
	if s.ShowFTP {
		parts = append(parts, fmt.Sprintf("FTP: %d", s.FTP))
	}
	parts = append(parts, hueLabel(s.Hue))
	return strings.Join(parts, " | ")
}

func linkLabel(p powermeter.LinkPhase) string {
	switch p {
	case powermeter.LinkConnected:
		return "Connected"
	case powermeter.LinkConnecting:
		return "Connecting"
	case powermeter.LinkScanning:
		return "Scanning"
	default:
		return "Idle"
	}
}

func hueLabel(h HueState) string {
	switch h {
	case HueReachable:
		return "Hue ok"
	case HueUnreachable:
		return "Hue down"
	default:
		return "Hue OFF"
	}
}

var bars = []rune("▁▂▃▄▅▆▇█")

// Sparkline draws history as one bar per value on a 0..HistoryScale watt
// scale. Larger values are clamped.
func Sparkline(history []uint16) string {
	out := make([]rune, len(history))
	for i, p := range history {
		level := int(p) * (len(bars) - 1) / HistoryScale
		if level >= len(bars) {
			level = len(bars) - 1
		}
		out[i] = bars[level]
	}
	return string(out)
}
