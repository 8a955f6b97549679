// Package sim provides in-memory Transport and DisplayBackend
// implementations: one permanently connected fake device whose virtual
// display requests a mode and then streams a moving test pattern.
//
// It exists so the full command pipeline (timing, codec, protocol,
// driver, manager) can be run and observed without DisplayLink hardware
// or a kernel virtual-display module, both from the CLI (--sim) and in
// integration tests. Bulk output is counted and discarded.
package sim

import (
	"context"
	"sync"
	"time"

	"github.com/SWORDIntel/STARDRIVE/internal/domain"
	"github.com/SWORDIntel/STARDRIVE/internal/ports"
)

// Mode is the resolution the simulated display asks for.
var Mode = ports.ModeRequest{Width: 1024, Height: 768, Refresh: 60}

// FrameInterval is the simulated update-ready cadence.
const FrameInterval = 100 * time.Millisecond

// Transport is a fake USB host with exactly one device.
type Transport struct{}

// NewTransport returns the fake host.
func NewTransport() *Transport { return &Transport{} }

// Enumerate implements ports.Transport.
func (t *Transport) Enumerate(ctx context.Context, vendorID, productID uint16) ([]ports.DeviceInfo, error) {
	return []ports.DeviceInfo{
		{Bus: 1, Address: 1, VendorID: vendorID, ProductID: productID},
	}, nil
}

// Open implements ports.Transport.
func (t *Transport) Open(ctx context.Context, info ports.DeviceInfo) (ports.Conn, error) {
	return &conn{}, nil
}

// conn discards everything it is sent.
type conn struct {
	mu    sync.Mutex
	bytes int
}

func (c *conn) DetachKernelDriver(iface int) error { return nil }
func (c *conn) ClaimInterface(iface int) error     { return nil }
func (c *conn) ReleaseInterface(iface int) error   { return nil }
func (c *conn) Close() error                       { return nil }

func (c *conn) ControlTransfer(ctx context.Context, request uint8, value uint16, payload []byte) error {
	return nil
}

func (c *conn) BulkTransfer(ctx context.Context, p []byte) (int, error) {
	c.mu.Lock()
	c.bytes += len(p)
	c.mu.Unlock()
	return len(p), nil
}

// Backend creates simulated virtual displays.
type Backend struct{}

// NewBackend returns the fake backend.
func NewBackend() *Backend { return &Backend{} }

// Create implements ports.DisplayBackend.
func (b *Backend) Create(ctx context.Context) (ports.BackendConn, error) {
	return &backendConn{stop: make(chan struct{})}, nil
}

// backendConn streams a moving test pattern to its handler.
type backendConn struct {
	mu      sync.Mutex
	handler ports.EventHandler
	frame   int
	stop    chan struct{}
	once    sync.Once
}

func (b *backendConn) SetHandler(h ports.EventHandler) {
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()
}

func (b *backendConn) Connect(edid []byte) error {
	go b.pump()
	return nil
}

func (b *backendConn) pump() {
	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()
	if h == nil {
		return
	}
	h.ModeChanged(Mode)

	ticker := time.NewTicker(FrameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			b.mu.Lock()
			b.frame++
			b.mu.Unlock()
			h.UpdateReady(0)
		}
	}
}

func (b *backendConn) GrabPixels() (ports.FramePixels, error) {
	b.mu.Lock()
	frame := b.frame
	b.mu.Unlock()

	w, h := Mode.Width, Mode.Height
	pix := make([]uint32, w*h)
	// Horizontal gradient with a vertical bar sweeping one column per
	// frame; gives the codec both long repeats and raw stretches.
	bar := frame % w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint32(x * 255 / w)
			pix[y*w+x] = 0xFF000000 | v<<16 | v<<8 | v
		}
		pix[y*w+bar] = 0xFFFF0000
	}
	return ports.FramePixels{
		BufferID: 0,
		Pix:      pix,
		Width:    w,
		Height:   h,
		Stride:   w,
		Rects: []domain.DamageRect{
			{X: bar, Y: 0, W: 1, H: h},
			{X: (bar + w - 1) % w, Y: 0, W: 1, H: h},
		},
	}, nil
}

func (b *backendConn) AckFrame(bufferID int) error { return nil }

func (b *backendConn) Disconnect() error {
	b.once.Do(func() { close(b.stop) })
	return nil
}

func (b *backendConn) Close() error {
	b.once.Do(func() { close(b.stop) })
	return nil
}
