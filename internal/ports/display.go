package ports

import (
	"context"

	"github.com/SWORDIntel/STARDRIVE/internal/domain"
)

// PowerState is the four-level display power signal delivered by the
// virtual-display backend.
type PowerState int

const (
	PowerOn PowerState = iota
	PowerStandby
	PowerSuspend
	PowerOff
)

// String returns a human-readable power state name.
func (p PowerState) String() string {
	switch p {
	case PowerOn:
		return "on"
	case PowerStandby:
		return "standby"
	case PowerSuspend:
		return "suspend"
	case PowerOff:
		return "off"
	default:
		return "unknown"
	}
}

// ModeRequest carries the resolution and refresh rate of a mode-change
// event.
type ModeRequest struct {
	Width   int
	Height  int
	Refresh int
}

// CursorState describes a cursor-set event. Compositing the cursor onto
// the frame is a pending capability; the driver currently logs these.
type CursorState struct {
	X, Y          int
	Width, Height int
	HotX, HotY    int
	Visible       bool
}

// FramePixels is the result of a pixel grab: the backend's current
// buffer, its layout, and the dirty rectangles accumulated since the
// last grab (nil or empty when unknown, in which case the whole frame
// must be treated as dirty).
type FramePixels struct {
	BufferID int
	Pix      []uint32 // 0xAARRGGBB, row-major
	Width    int
	Height   int
	Stride   int // pixels per row
	Rects    []domain.DamageRect
}

// EventHandler receives backend events for one device. It is
// implemented by the device driver; the backend delivers callbacks
// synchronously and per device, and must not assume the handler
// finished processing when a method returns.
type EventHandler interface {
	ModeChanged(req ModeRequest)
	PowerChanged(state PowerState)
	UpdateReady(bufferID int)
	CursorSet(state CursorState)
	CursorMoved(x, y int)
	MonitorControl(data []byte)
}

// DisplayBackend creates virtual-display devices.
type DisplayBackend interface {
	// Create makes a new kernel-visible virtual display and returns
	// its connection, exclusively owned by the caller until Close.
	Create(ctx context.Context) (BackendConn, error)
}

// BackendConn is one virtual-display connection.
type BackendConn interface {
	// Connect advertises the display with the given EDID block.
	Connect(edid []byte) error

	// SetHandler registers the event handler. Must be called before
	// Connect so no event is lost.
	SetHandler(h EventHandler)

	// GrabPixels returns the current pixel buffer and dirty rectangles.
	GrabPixels() (FramePixels, error)

	// AckFrame acknowledges consumption of a grabbed buffer.
	AckFrame(bufferID int) error

	// Disconnect withdraws the display from the kernel.
	Disconnect() error

	// Close destroys the virtual display. Safe after Disconnect.
	Close() error
}
