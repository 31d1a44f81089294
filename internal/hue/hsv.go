package hue

import (
	"math"

	"github.com/srg/powerlight/internal/zones"
)

// ToHueSatBri converts c to the bridge's color space: hue 0..65535,
// saturation and brightness 0..254.
func ToHueSatBri(c zones.Color) (hue uint16, sat, bri uint8) {
	r := float32(c.R) / 255
	g := float32(c.G) / 255
	b := float32(c.B) / 255

	maxVal := max(r, g, b)
	minVal := min(r, g, b)
	delta := maxVal - minVal

	var h float32
	switch {
	case delta == 0:
		h = 0
	case maxVal == r:
		h = 60 * float32(math.Mod(float64((g-b)/delta), 6))
	case maxVal == g:
		h = 60 * ((b-r)/delta + 2)
	default:
		h = 60 * ((r-g)/delta + 4)
	}
	if h < 0 {
		h += 360
	}

	var s float32
	if maxVal != 0 {
		s = delta / maxVal
	}

	return uint16(h / 360 * 65535), uint8(s * 254), uint8(maxVal * 254)
}
