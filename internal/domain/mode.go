package domain

// DisplayMode is a fully resolved timing configuration for one
// resolution/refresh pair. All values are what the device's timing
// controller is programmed with; PixelClock is in kHz.
type DisplayMode struct {
	Width   int
	Height  int
	Refresh int

	PixelClock int // kHz

	HBlank     int
	HSyncStart int // offset from end of active area
	HSyncWidth int

	VBlank     int
	VSyncStart int
	VSyncWidth int
}

// HTotal returns the full horizontal period including blanking.
func (m DisplayMode) HTotal() int { return m.Width + m.HBlank }

// VTotal returns the full vertical period including blanking.
func (m DisplayMode) VTotal() int { return m.Height + m.VBlank }

// Valid reports whether every timing field is positive.
func (m DisplayMode) Valid() bool {
	return m.Width > 0 && m.Height > 0 && m.Refresh > 0 &&
		m.PixelClock > 0 &&
		m.HBlank > 0 && m.HSyncStart > 0 && m.HSyncWidth > 0 &&
		m.VBlank > 0 && m.VSyncStart > 0 && m.VSyncWidth > 0
}

// ClockMatches reports whether PixelClock agrees with
// htotal*vtotal*refresh/1000 within one unit of rounding per dimension.
// Fixed standard modes carry hardware-validated clocks and are exempt
// from this check; it applies to synthesized modes only.
func (m DisplayMode) ClockMatches() bool {
	want := m.HTotal() * m.VTotal() * m.Refresh / 1000
	diff := m.PixelClock - want
	if diff < 0 {
		diff = -diff
	}
	// Allow the truncation error of the /1000 division.
	return diff <= m.HTotal()*m.VTotal()/1000+1
}
