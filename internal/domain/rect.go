package domain

// DamageRect is a sub-region of the frame that has changed since the
// last update. Coordinates are in pixels, origin top-left.
type DamageRect struct {
	X int
	Y int
	W int
	H int
}

// Empty reports whether the rectangle covers no pixels.
func (r DamageRect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Pixels returns the number of pixels the rectangle covers.
func (r DamageRect) Pixels() int {
	if r.Empty() {
		return 0
	}
	return r.W * r.H
}

// In reports whether the rectangle lies fully within a width x height frame.
func (r DamageRect) In(width, height int) bool {
	return !r.Empty() && r.X >= 0 && r.Y >= 0 &&
		r.X+r.W <= width && r.Y+r.H <= height
}

// Clip returns the rectangle intersected with a width x height frame.
// The result may be empty.
func (r DamageRect) Clip(width, height int) DamageRect {
	if r.X < 0 {
		r.W += r.X
		r.X = 0
	}
	if r.Y < 0 {
		r.H += r.Y
		r.Y = 0
	}
	if r.X+r.W > width {
		r.W = width - r.X
	}
	if r.Y+r.H > height {
		r.H = height - r.Y
	}
	if r.Empty() {
		return DamageRect{}
	}
	return r
}
