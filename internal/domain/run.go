package domain

// RunKind distinguishes the two run-length encoding output units.
type RunKind uint8

const (
	// RunRepeat is a stretch of 2..255 identical pixels, stored as a
	// count byte followed by one RGB565 color.
	RunRepeat RunKind = iota

	// RunRaw is a stretch of 1..256 literal pixels, stored as the 0xAF
	// marker, a count-1 byte and the RGB565 colors.
	RunRaw
)

// Run is one unit of run-length encoded pixel output.
// For RunRepeat, Color holds the repeated value and Colors is nil.
// For RunRaw, Colors holds the literal values and Color is unused.
type Run struct {
	Kind   RunKind
	Count  int
	Color  uint16
	Colors []uint16
}

// EncodedLen returns the serialized size of the run in bytes.
func (r Run) EncodedLen() int {
	if r.Kind == RunRepeat {
		return 3
	}
	return 2 + 2*r.Count
}
