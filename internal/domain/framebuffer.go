package domain

// FrameBuffer is the owned pixel store for one device, sized to the
// active DisplayMode. Pixels are 32-bit 0xAARRGGBB values, row-major.
// The buffer is replaced whole on a mode change, never resized in place.
type FrameBuffer struct {
	Pix    []uint32
	Width  int
	Height int
	Stride int // pixels per row, >= Width
}

// NewFrameBuffer allocates a frame buffer for the given mode.
func NewFrameBuffer(m DisplayMode) *FrameBuffer {
	return &FrameBuffer{
		Pix:    make([]uint32, m.Width*m.Height),
		Width:  m.Width,
		Height: m.Height,
		Stride: m.Width,
	}
}

// Bounds returns the full-frame rectangle.
func (f *FrameBuffer) Bounds() DamageRect {
	return DamageRect{X: 0, Y: 0, W: f.Width, H: f.Height}
}

// Row returns the pixels of row y restricted to [x, x+w).
// The caller is responsible for bounds; Row panics outside them,
// matching slice semantics.
func (f *FrameBuffer) Row(x, y, w int) []uint32 {
	off := y*f.Stride + x
	return f.Pix[off : off+w]
}

// CopyRect copies the rectangle r from src (with its own stride) into
// the frame buffer at the same position. Out-of-bounds portions of r
// are clipped away.
func (f *FrameBuffer) CopyRect(src []uint32, srcStride int, r DamageRect) {
	r = r.Clip(f.Width, f.Height)
	for y := r.Y; y < r.Y+r.H; y++ {
		srcRow := src[y*srcStride+r.X : y*srcStride+r.X+r.W]
		copy(f.Row(r.X, y, r.W), srcRow)
	}
}
