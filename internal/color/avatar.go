// Package color derives fallback avatar colours and initials for users without an avatar image.
package color

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const (
	saturation = 0.45
	lightness  = 0.6
)

// ForUser returns a stable "#RRGGBB" colour for userID. The same id always maps to the
// same hue; saturation and lightness are fixed so text on top stays readable.
func ForUser(userID string) string {
	h := fnv.New32a()
	h.Write([]byte(userID))
	hue := float64(h.Sum32() % 360)

	r, g, b := hslToRGB(hue, saturation, lightness)
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

// Initials returns up to two uppercase initials from a display name, or "?" when none.
func Initials(name string) string {
	var out []rune
	for _, word := range strings.Fields(name) {
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				out = append(out, unicode.ToUpper(r))
				break
			}
		}
		if len(out) == 2 {
			break
		}
	}
	if len(out) == 0 {
		return "?"
	}
	return string(out)
}

// hslToRGB converts hue (0-360), saturation and lightness (0-1) to 8-bit RGB.
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r1, g1, b1 float64
	switch {
	case h < 60:
		r1, g1, b1 = c, x, 0
	case h < 120:
		r1, g1, b1 = x, c, 0
	case h < 180:
		r1, g1, b1 = 0, c, x
	case h < 240:
		r1, g1, b1 = 0, x, c
	case h < 300:
		r1, g1, b1 = x, 0, c
	default:
		r1, g1, b1 = c, 0, x
	}

	return channel(r1 + m), channel(g1 + m), channel(b1 + m)
}

func channel(v float64) uint8 {
	return uint8(math.Round(v * 255))
}
