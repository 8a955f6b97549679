package timing

import (
	"errors"
	"testing"

	"github.com/SWORDIntel/STARDRIVE/internal/domain"
)

func TestCalculateStandardModes(t *testing.T) {
	tests := []struct {
		name    string
		w, h, r int
		want    domain.DisplayMode
	}{
		{
			name: "1080p60",
			w:    1920, h: 1080, r: 60,
			want: domain.DisplayMode{
				Width: 1920, Height: 1080, Refresh: 60,
				PixelClock: 148500,
				HBlank:     280, HSyncStart: 88, HSyncWidth: 44,
				VBlank: 45, VSyncStart: 4, VSyncWidth: 5,
			},
		},
		{
			name: "720p60",
			w:    1280, h: 720, r: 60,
			want: domain.DisplayMode{
				Width: 1280, Height: 720, Refresh: 60,
				PixelClock: 74250,
				HBlank:     370, HSyncStart: 110, HSyncWidth: 40,
				VBlank: 30, VSyncStart: 5, VSyncWidth: 5,
			},
		},
		{
			name: "xga60",
			w:    1024, h: 768, r: 60,
			want: domain.DisplayMode{
				Width: 1024, Height: 768, Refresh: 60,
				PixelClock: 65000,
				HBlank:     320, HSyncStart: 24, HSyncWidth: 136,
				VBlank: 38, VSyncStart: 3, VSyncWidth: 6,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Calculate(tt.w, tt.h, tt.r)
			if err != nil {
				t.Fatalf("Calculate(%d, %d, %d): %v", tt.w, tt.h, tt.r, err)
			}
			if got != tt.want {
				t.Fatalf("Calculate(%d, %d, %d) = %+v, want %+v", tt.w, tt.h, tt.r, got, tt.want)
			}
		})
	}
}

func TestCalculateSynthesized(t *testing.T) {
	m, err := Calculate(1600, 900, 60)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if _, ok := Standard(1600, 900, 60); ok {
		t.Fatal("1600x900@60 unexpectedly present in the standard table")
	}
	if !m.Valid() {
		t.Fatalf("synthesized mode invalid: %+v", m)
	}
	if m.HBlank != 320 || m.VBlank != 30 {
		t.Fatalf("blanking = %d/%d, want 320/30", m.HBlank, m.VBlank)
	}
	// The clock must follow from the totals exactly.
	if !m.ClockMatches() {
		t.Fatalf("pixel clock %d kHz does not match totals %dx%d@%d",
			m.PixelClock, m.HTotal(), m.VTotal(), m.Refresh)
	}
	if m.HSyncStart < 1 || m.HSyncWidth < 1 || m.VSyncStart < 1 || m.VSyncWidth < 1 {
		t.Fatalf("sync placement collapsed to zero: %+v", m)
	}
}

func TestSynthesizeTinyMode(t *testing.T) {
	// Small resolutions must still produce nonzero blanking and sync.
	m := Synthesize(32, 32, 60)
	if m.HBlank < 8 || m.VBlank < 2 {
		t.Fatalf("blanking floor not applied: %+v", m)
	}
	if m.HSyncStart < 1 || m.VSyncWidth < 1 {
		t.Fatalf("sync floor not applied: %+v", m)
	}

	// Fewer than a thousand pixel periods per second would truncate
	// the kHz clock to zero; Calculate must still return a valid mode.
	tiny, err := Calculate(8, 8, 1)
	if err != nil {
		t.Fatalf("Calculate(8, 8, 1): %v", err)
	}
	if tiny.PixelClock < 1 {
		t.Fatalf("pixel clock = %d, want >= 1", tiny.PixelClock)
	}
	if !tiny.Valid() {
		t.Fatalf("tiny mode invalid: %+v", tiny)
	}
}

func TestCalculateRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		w, h, r int
	}{
		{"zero width", 0, 1080, 60},
		{"zero height", 1920, 0, 60},
		{"negative width", -1920, 1080, 60},
		{"zero refresh", 1920, 1080, 0},
		{"refresh too high", 1920, 1080, MaxRefresh + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Calculate(tt.w, tt.h, tt.r)
			if !errors.Is(err, domain.ErrInvalidMode) {
				t.Fatalf("Calculate(%d, %d, %d) err = %v, want ErrInvalidMode", tt.w, tt.h, tt.r, err)
			}
		})
	}
}
