// Package timing derives register-level display timings from a requested
// resolution and refresh rate.
//
// Recognized standard modes return fixed values that have been validated
// against real hardware. Everything else falls back to synthesized
// conservative timings; those are approximations, not hardware-verified
// values, and the sync placement in particular is a fixed fraction of the
// blanking interval rather than a CVT/GTF computation.
package timing

import (
	"fmt"

	"github.com/SWORDIntel/STARDRIVE/internal/domain"
)

// MaxRefresh is the highest refresh rate accepted as plausible.
const MaxRefresh = 240

type modeKey struct {
	width, height, refresh int
}

// standardModes holds hardware-validated timings keyed by resolution and
// refresh rate.
var standardModes = map[modeKey]domain.DisplayMode{
	{1920, 1080, 60}: {
		Width: 1920, Height: 1080, Refresh: 60,
		PixelClock: 148500,
		HBlank:     280, HSyncStart: 88, HSyncWidth: 44,
		VBlank: 45, VSyncStart: 4, VSyncWidth: 5,
	},
	{1280, 720, 60}: {
		Width: 1280, Height: 720, Refresh: 60,
		PixelClock: 74250,
		HBlank:     370, HSyncStart: 110, HSyncWidth: 40,
		VBlank: 30, VSyncStart: 5, VSyncWidth: 5,
	},
	{1024, 768, 60}: {
		Width: 1024, Height: 768, Refresh: 60,
		PixelClock: 65000,
		HBlank:     320, HSyncStart: 24, HSyncWidth: 136,
		VBlank: 38, VSyncStart: 3, VSyncWidth: 6,
	},
}

// Calculate returns a fully populated DisplayMode for the requested
// resolution and refresh rate. Standard modes return their validated
// table entries; anything else is synthesized with Synthesize.
func Calculate(width, height, refresh int) (domain.DisplayMode, error) {
	if err := validate(width, height, refresh); err != nil {
		return domain.DisplayMode{}, err
	}
	if m, ok := standardModes[modeKey{width, height, refresh}]; ok {
		return m, nil
	}
	return Synthesize(width, height, refresh), nil
}

// Standard returns the validated mode table entry for the given
// resolution, or false when none exists.
func Standard(width, height, refresh int) (domain.DisplayMode, bool) {
	m, ok := standardModes[modeKey{width, height, refresh}]
	return m, ok
}

// Synthesize builds conservative timings for a resolution with no table
// entry: horizontal blanking is width/5, vertical blanking height/30,
// and the pixel clock follows from the resulting totals. Sync start and
// width are fixed fractions of the blanking interval. The clock is in
// kHz, so modes with fewer than a thousand pixel periods per second
// truncate to zero; those are clamped to 1 kHz to keep every timing
// field positive.
func Synthesize(width, height, refresh int) domain.DisplayMode {
	hblank := atLeast(width/5, 8)
	vblank := atLeast(height/30, 2)
	return domain.DisplayMode{
		Width:      width,
		Height:     height,
		Refresh:    refresh,
		PixelClock: atLeast((width+hblank)*(height+vblank)*refresh/1000, 1),
		HBlank:     hblank,
		HSyncStart: atLeast(hblank/4, 1),
		HSyncWidth: atLeast(hblank/8, 1),
		VBlank:     vblank,
		VSyncStart: atLeast(vblank/4, 1),
		VSyncWidth: atLeast(vblank/8, 1),
	}
}

func validate(width, height, refresh int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", domain.ErrInvalidMode, width, height)
	}
	if refresh <= 0 || refresh > MaxRefresh {
		return fmt.Errorf("%w: refresh %d Hz", domain.ErrInvalidMode, refresh)
	}
	return nil
}

func atLeast(v, min int) int {
	if v < min {
		return min
	}
	return v
}
