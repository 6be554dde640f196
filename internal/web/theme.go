package web

import (
	"fmt"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Theme holds the page colours derived from one accent colour.
type Theme struct {
	Accent     string // spinner and focus colour
	Button     string // button background
	Background string // page background
}

var white = colorful.Color{R: 1, G: 1, B: 1}

// NewTheme derives the page palette from a hex accent colour. Buttons and
// background are the accent blended towards white in Lab space.
func NewTheme(accentHex string) (Theme, error) {
	accent, err := colorful.Hex(accentHex)
	if err != nil {
		return Theme{}, fmt.Errorf("invalid accent color %q: %w", accentHex, err)
	}
	return Theme{
		Accent:     accent.Hex(),
		Button:     accent.BlendLab(white, 0.55).Clamped().Hex(),
		Background: accent.BlendLab(white, 0.75).Clamped().Hex(),
	}, nil
}
