// Package driver runs one device: the per-device state machine from the
// USB initialization sequence through mode programming and the frame
// pump to teardown.
//
// A Driver is the event handler for its virtual display. Backend
// callbacks enqueue events onto an internal queue consumed by the
// single Run goroutine, so all register writes, damage updates and mode
// programs for one device are issued strictly sequentially; the
// hardware requires single-writer command ordering. Nothing in the
// driver is shared across devices.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SWORDIntel/STARDRIVE/internal/codec"
	"github.com/SWORDIntel/STARDRIVE/internal/domain"
	"github.com/SWORDIntel/STARDRIVE/internal/ports"
	"github.com/SWORDIntel/STARDRIVE/internal/protocol"
	"github.com/SWORDIntel/STARDRIVE/internal/timing"
)

// MaxDirtyRects is the most dirty rectangles honored per update
// notification; anything beyond that falls back to a full-frame update.
const MaxDirtyRects = 16

// Config holds per-device driver settings.
type Config struct {
	// EDID is the block advertised to the virtual display.
	EDID []byte

	// Interface is the USB interface carrying the display function.
	Interface int

	// ControlTimeout bounds vendor control transfers.
	ControlTimeout time.Duration

	// TransferTimeout bounds one bulk transfer unit.
	TransferTimeout time.Duration

	// QueueDepth is the event queue capacity.
	QueueDepth int
}

// DefaultConfig returns driver settings matching the device defaults.
func DefaultConfig() Config {
	return Config{
		Interface:       protocol.DisplayInterface,
		ControlTimeout:  time.Second,
		TransferTimeout: 2 * time.Second,
		QueueDepth:      64,
	}
}

type eventKind int

const (
	evModeChanged eventKind = iota
	evPowerChanged
	evUpdateReady
	evCursorSet
	evCursorMoved
	evMonitorControl
)

type event struct {
	kind     eventKind
	mode     ports.ModeRequest
	power    ports.PowerState
	bufferID int
	cursor   ports.CursorState
	x, y     int
	data     []byte
}

// Driver is the state machine for one device. It exclusively owns the
// device's transport connection and, once initialized, its
// virtual-display connection.
type Driver struct {
	id      string
	conn    ports.Conn
	backend ports.DisplayBackend
	cfg     Config
	log     ports.Logger

	mu    sync.Mutex
	state State

	// pending coalesces update-ready notifications that arrived while
	// the event queue was full; one grab serves them all.
	pending atomic.Bool

	// Owned by the Run goroutine; no locking.
	bconn ports.BackendConn
	mode  domain.DisplayMode
	fb    *domain.FrameBuffer
	enc   *codec.Codec
	out   *protocol.Builder

	events chan event
}

// New creates a driver for one opened device connection. The driver
// takes ownership of conn; Run closes it on the way out.
func New(id string, conn ports.Conn, backend ports.DisplayBackend, cfg Config, log ports.Logger) *Driver {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = DefaultConfig().QueueDepth
	}
	return &Driver{
		id:      id,
		conn:    conn,
		backend: backend,
		cfg:     cfg,
		log:     log,
		state:   StateUninitialized,
		enc:     codec.New(),
		out:     protocol.NewBuilder(),
		events:  make(chan event, cfg.QueueDepth),
	}
}

// ID returns the stable device identifier.
func (d *Driver) ID() string { return d.id }

// Run initializes the device and pumps events until the context is
// canceled or a fatal error occurs. It always leaves the driver in
// StateClosed with the transport and backend connections released.
// The returned error is the terminal status: nil for a clean stop,
// non-nil for a fatal failure.
func (d *Driver) Run(ctx context.Context) error {
	if err := d.initialize(ctx); err != nil {
		d.log.Error("device initialization failed", ports.String("device", d.id), ports.Err(err))
		d.terminate("initialization failed")
		return err
	}

	for {
		select {
		case <-ctx.Done():
			d.terminate("stop requested")
			return nil
		case ev := <-d.events:
			if err := d.handle(ctx, ev); err != nil {
				d.log.Error("fatal device error", ports.String("device", d.id), ports.Err(err))
				d.terminate("fatal error")
				return err
			}
			d.drainPending(ctx)
		}
	}
}

// drainPending runs one coalesced update if callbacks deferred any
// while the queue was full. The grab always returns current pixels, so
// a single update covers every deferred notification.
func (d *Driver) drainPending(ctx context.Context) {
	if d.pending.Swap(false) {
		d.handleUpdate(ctx, 0)
	}
}

// initialize performs the strict device bring-up sequence: detach any
// conflicting kernel driver, claim the display interface, issue the
// channel-initialization vendor request, create and connect the virtual
// display, and blank the screen until a mode arrives. Any failure is
// fatal for this device.
func (d *Driver) initialize(ctx context.Context) error {
	if err := d.transitionTo(StateInitializing, "starting"); err != nil {
		return err
	}

	if err := d.conn.DetachKernelDriver(d.cfg.Interface); err != nil {
		return fmt.Errorf("detach kernel driver: %w", err)
	}
	if err := d.conn.ClaimInterface(d.cfg.Interface); err != nil {
		return fmt.Errorf("claim interface %d: %w", d.cfg.Interface, err)
	}

	cctx, cancel := context.WithTimeout(ctx, d.cfg.ControlTimeout)
	err := d.conn.ControlTransfer(cctx, protocol.ReqChannel, protocol.ChannelInit, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("channel init: %w", err)
	}

	bconn, err := d.backend.Create(ctx)
	if err != nil {
		return fmt.Errorf("%w: create virtual display: %v", domain.ErrBackend, err)
	}
	d.bconn = bconn
	d.bconn.SetHandler(d)
	if err := d.bconn.Connect(d.cfg.EDID); err != nil {
		return fmt.Errorf("%w: connect virtual display: %v", domain.ErrBackend, err)
	}

	// Blank until the first mode program; the panel shows garbage
	// otherwise.
	d.out.Reset()
	d.out.Blank(true)
	if err := d.flush(ctx); err != nil {
		return fmt.Errorf("initial blank: %w", err)
	}

	d.log.Info("device initialized", ports.String("device", d.id))
	return d.transitionTo(StateIdle, "initialized")
}

// handle processes one event. A non-nil return is fatal for the device.
func (d *Driver) handle(ctx context.Context, ev event) error {
	switch ev.kind {
	case evModeChanged:
		return d.handleModeChange(ctx, ev.mode)
	case evPowerChanged:
		d.handlePower(ctx, ev.power)
	case evUpdateReady:
		d.handleUpdate(ctx, ev.bufferID)
	case evCursorSet:
		// Cursor compositing is a pending capability.
		d.log.Debug("cursor set",
			ports.String("device", d.id),
			ports.Int("w", ev.cursor.Width), ports.Int("h", ev.cursor.Height),
			ports.Bool("visible", ev.cursor.Visible))
	case evCursorMoved:
		d.log.Debug("cursor moved",
			ports.String("device", d.id), ports.Int("x", ev.x), ports.Int("y", ev.y))
	case evMonitorControl:
		// Monitor-control forwarding is a pending capability.
		d.log.Debug("monitor control data",
			ports.String("device", d.id), ports.Int("len", len(ev.data)))
	}
	return nil
}

// handleModeChange programs the device timing controller and replaces
// the frame buffer. Failures here are fatal: the device's timing state
// is unknown afterwards.
func (d *Driver) handleModeChange(ctx context.Context, req ports.ModeRequest) error {
	mode, err := timing.Calculate(req.Width, req.Height, req.Refresh)
	if err != nil {
		return fmt.Errorf("mode %dx%d@%d: %w", req.Width, req.Height, req.Refresh, err)
	}

	d.out.Reset()
	if err := d.out.ModeProgram(mode); err != nil {
		return err
	}
	d.out.Blank(false)
	if err := d.flush(ctx); err != nil {
		return fmt.Errorf("mode program: %w", err)
	}

	d.mode = mode
	d.fb = domain.NewFrameBuffer(mode)
	d.enc.Reserve(mode.Width, mode.Height)

	d.log.Info("mode set",
		ports.String("device", d.id),
		ports.Int("width", mode.Width), ports.Int("height", mode.Height),
		ports.Int("refresh", mode.Refresh), ports.Int("clock_khz", mode.PixelClock))
	return d.transitionTo(StateModeActive, "mode programmed")
}

// handlePower maps the four-level power signal onto the blank register.
// Standby, suspend and off all blank; only on unblanks. Blank transfer
// failures are transient: the state is left unchanged and the next
// power event retries.
func (d *Driver) handlePower(ctx context.Context, p ports.PowerState) {
	st := d.State()
	switch {
	case p == ports.PowerOn && st == StateBlanked:
		d.out.Reset()
		d.out.Blank(false)
		if err := d.flush(ctx); err != nil {
			d.log.Warn("unblank failed", ports.String("device", d.id), ports.Err(err))
			return
		}
		_ = d.transitionTo(StateModeActive, "power on")
	case p != ports.PowerOn && st == StateModeActive:
		d.out.Reset()
		d.out.Blank(true)
		if err := d.flush(ctx); err != nil {
			d.log.Warn("blank failed", ports.String("device", d.id), ports.Err(err))
			return
		}
		_ = d.transitionTo(StateBlanked, "power "+p.String())
	default:
		d.log.Debug("power event ignored",
			ports.String("device", d.id),
			ports.String("power", p.String()), ports.String("state", st.String()))
	}
}

// handleUpdate pumps one frame: grab pixels, encode each dirty
// rectangle, send its damage sequence, acknowledge the buffer. All
// failures here are transient; the frame is dropped and the next
// update-ready event supersedes it.
func (d *Driver) handleUpdate(ctx context.Context, bufferID int) {
	st := d.State()
	if st != StateModeActive && st != StateBlanked {
		d.log.Warn("update before mode set", ports.String("device", d.id))
		return
	}

	grab, err := d.bconn.GrabPixels()
	if err != nil {
		d.log.Warn("pixel grab failed", ports.String("device", d.id), ports.Err(err))
		return
	}
	defer func() {
		if err := d.bconn.AckFrame(grab.BufferID); err != nil {
			d.log.Warn("frame ack failed", ports.String("device", d.id), ports.Err(err))
		}
	}()

	if st == StateBlanked {
		// Consume but do not transmit; the panel is off.
		return
	}
	if grab.Width != d.fb.Width || grab.Height != d.fb.Height {
		d.log.Warn("grab dimensions do not match current mode",
			ports.String("device", d.id),
			ports.Int("grab_w", grab.Width), ports.Int("grab_h", grab.Height),
			ports.Int("mode_w", d.fb.Width), ports.Int("mode_h", d.fb.Height))
		return
	}

	rects := grab.Rects
	if len(rects) == 0 || len(rects) > MaxDirtyRects {
		rects = []domain.DamageRect{d.fb.Bounds()}
	}

	for _, r := range rects {
		r = r.Clip(d.fb.Width, d.fb.Height)
		if r.Empty() {
			continue
		}
		d.fb.CopyRect(grab.Pix, grab.Stride, r)

		payload, err := d.enc.EncodeRect(d.fb, r)
		if err != nil {
			d.log.Warn("encode failed", ports.String("device", d.id), ports.Err(err))
			return
		}
		d.out.Reset()
		if err := d.out.DamageUpdate(r, d.fb.Width, d.fb.Height, payload); err != nil {
			d.log.Warn("damage update rejected", ports.String("device", d.id), ports.Err(err))
			return
		}
		if err := d.flush(ctx); err != nil {
			// Dropped frame; no retry of stale pixels.
			d.log.Warn("frame transfer failed", ports.String("device", d.id), ports.Err(err))
			return
		}
	}
}

// flush writes the assembled stream as bulk transfer units, in order.
// The full stream is assembled before the first transfer begins, so a
// failure never leaves a half-built command on the wire mid-sequence.
func (d *Driver) flush(ctx context.Context) error {
	for _, chunk := range d.out.Chunks() {
		tctx, cancel := context.WithTimeout(ctx, d.cfg.TransferTimeout)
		n, err := d.conn.BulkTransfer(tctx, chunk)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: bulk transfer after %v", domain.ErrTransferTimeout, d.cfg.TransferTimeout)
		}
		if err != nil {
			return fmt.Errorf("%w: bulk transfer: %v", domain.ErrTransport, err)
		}
		if n != len(chunk) {
			return fmt.Errorf("%w: short bulk transfer: %d of %d bytes",
				domain.ErrTransport, n, len(chunk))
		}
	}
	return nil
}

// terminate releases everything the driver owns, in reverse acquisition
// order. Safe to call from any state; errors during teardown are logged
// and swallowed.
func (d *Driver) terminate(reason string) {
	if err := d.transitionTo(StateTerminating, reason); err != nil {
		// Already terminating or closed.
		return
	}
	if d.bconn != nil {
		if err := d.bconn.Disconnect(); err != nil {
			d.log.Warn("backend disconnect failed", ports.String("device", d.id), ports.Err(err))
		}
		if err := d.bconn.Close(); err != nil {
			d.log.Warn("backend close failed", ports.String("device", d.id), ports.Err(err))
		}
		d.bconn = nil
	}
	if err := d.conn.ReleaseInterface(d.cfg.Interface); err != nil {
		d.log.Warn("interface release failed", ports.String("device", d.id), ports.Err(err))
	}
	if err := d.conn.Close(); err != nil {
		d.log.Warn("transport close failed", ports.String("device", d.id), ports.Err(err))
	}
	_ = d.transitionTo(StateClosed, reason)
	d.log.Info("device closed", ports.String("device", d.id), ports.String("reason", reason))
}
