// Package zones maps power to training zones relative to the rider's FTP.
package zones

import (
	"fmt"
	"math"
)

// DefaultFTP is the functional threshold power used when none is configured.
const DefaultFTP = 227

// Color is an 8-bit RGB color.
type Color struct {
	R, G, B uint8
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Luma returns the perceived brightness of c in 0..255.
func (c Color) Luma() int {
	return (int(c.R)*299 + int(c.G)*587 + int(c.B)*114) / 1000
}

// Zone is a half-open power range [MinPercent, MaxPercent) of FTP.
type Zone struct {
	Number     int
	Name       string
	MinPercent float64
	MaxPercent float64
	Color      Color
}

// DefaultZones is the six-zone model with its lighting colors.
var DefaultZones = []Zone{
	{Number: 1, Name: "Recovery", MinPercent: 0, MaxPercent: 60, Color: Color{255, 255, 255}},
	{Number: 2, Name: "Endurance", MinPercent: 60, MaxPercent: 76, Color: Color{0, 0, 255}},
	{Number: 3, Name: "Tempo", MinPercent: 76, MaxPercent: 90, Color: Color{0, 255, 0}},
	{Number: 4, Name: "Threshold", MinPercent: 90, MaxPercent: 105, Color: Color{255, 255, 0}},
	{Number: 5, Name: "VO2 Max", MinPercent: 105, MaxPercent: 119, Color: Color{255, 165, 0}},
	{Number: 6, Name: "Anaerobic", MinPercent: 119, MaxPercent: 999, Color: Color{255, 0, 0}},
}

// Percent returns power as a percentage of ftp. A zero ftp yields 0.
func Percent(power, ftp uint16) float64 {
	if ftp == 0 {
		return 0
	}
	return float64(power) / float64(ftp) * 100
}

// For returns the zone of power in zs. Anything at or above the last zone's
// lower bound belongs to the last zone. zs must be ordered and non-empty.
func For(zs []Zone, power, ftp uint16) Zone {
	pct := Percent(power, ftp)

	last := zs[len(zs)-1]
	if pct >= last.MinPercent {
		return last
	}
	for _, z := range zs {
		if pct >= z.MinPercent && pct < z.MaxPercent {
			return z
		}
	}
	return zs[0]
}

// ColorFor returns the color of the default zone for power.
func ColorFor(power, ftp uint16) Color {
	return For(DefaultZones, power, ftp).Color
}

// Validate checks that zs is non-empty, ordered and gap free.
func Validate(zs []Zone) error {
	if len(zs) == 0 {
		return fmt.Errorf("no zones defined")
	}
	for i, z := range zs {
		if z.MaxPercent <= z.MinPercent || math.IsNaN(z.MinPercent) {
			return fmt.Errorf("zone %d: empty range %.0f-%.0f%%", i+1, z.MinPercent, z.MaxPercent)
		}
		if i > 0 && z.MinPercent != zs[i-1].MaxPercent {
			return fmt.Errorf("zone %d: starts at %.0f%%, previous ends at %.0f%%", i+1, z.MinPercent, zs[i-1].MaxPercent)
		}
	}
	return nil
}
