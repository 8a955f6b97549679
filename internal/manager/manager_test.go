package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SWORDIntel/STARDRIVE/internal/adapters/log"
	"github.com/SWORDIntel/STARDRIVE/internal/domain"
	"github.com/SWORDIntel/STARDRIVE/internal/driver"
	"github.com/SWORDIntel/STARDRIVE/internal/ports"
)

// fakeTransport serves a mutable device list. The list is read by the
// scan loop and written by the test between scans.
type fakeTransport struct {
	mu      sync.Mutex
	devices []ports.DeviceInfo
	opens   int
	openErr error
	openCtx context.Context
}

func (t *fakeTransport) setDevices(devices ...ports.DeviceInfo) {
	t.mu.Lock()
	t.devices = devices
	t.mu.Unlock()
}

func (t *fakeTransport) openCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opens
}

func (t *fakeTransport) Enumerate(ctx context.Context, vid, pid uint16) ([]ports.DeviceInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]ports.DeviceInfo(nil), t.devices...), nil
}

func (t *fakeTransport) Open(ctx context.Context, info ports.DeviceInfo) (ports.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.opens++
	t.openCtx = ctx
	if t.openErr != nil {
		return nil, t.openErr
	}
	return &fakeConn{}, nil
}

func (t *fakeTransport) lastOpenCtx() context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.openCtx
}

type fakeConn struct{}

func (fakeConn) DetachKernelDriver(iface int) error { return nil }
func (fakeConn) ClaimInterface(iface int) error     { return nil }
func (fakeConn) ControlTransfer(ctx context.Context, request uint8, value uint16, payload []byte) error {
	return nil
}
func (fakeConn) BulkTransfer(ctx context.Context, p []byte) (int, error) { return len(p), nil }
func (fakeConn) ReleaseInterface(iface int) error                        { return nil }
func (fakeConn) Close() error                                            { return nil }

// fakeBackend records the EDID of every display it creates.
type fakeBackend struct {
	mu    sync.Mutex
	edids [][]byte
}

func (b *fakeBackend) Create(ctx context.Context) (ports.BackendConn, error) {
	return &fakeBackendConn{b: b}, nil
}

func (b *fakeBackend) connectedEDIDs() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.edids...)
}

type fakeBackendConn struct {
	b *fakeBackend
}

func (c *fakeBackendConn) Connect(edid []byte) error {
	c.b.mu.Lock()
	c.b.edids = append(c.b.edids, append([]byte(nil), edid...))
	c.b.mu.Unlock()
	return nil
}

func (c *fakeBackendConn) SetHandler(h ports.EventHandler) {}
func (c *fakeBackendConn) GrabPixels() (ports.FramePixels, error) {
	return ports.FramePixels{}, errors.New("no frame")
}
func (c *fakeBackendConn) AckFrame(bufferID int) error { return nil }
func (c *fakeBackendConn) Disconnect() error           { return nil }
func (c *fakeBackendConn) Close() error                { return nil }

func newTestManager(t *fakeTransport, b *fakeBackend) *Manager {
	cfg := Config{
		VendorID:  0x17E9,
		ProductID: 0x4307,
		Driver:    driver.DefaultConfig(),
	}
	cfg.Driver.EDID = make([]byte, 128)
	return New(t, b, cfg, log.NewNoopLogger())
}

func dev(bus, addr int) ports.DeviceInfo {
	return ports.DeviceInfo{Bus: bus, Address: addr, VendorID: 0x17E9, ProductID: 0x4307}
}

// settle drains worker status reports until cond holds or the deadline
// passes. Registry access stays on the test goroutine, matching the
// scan loop's single-goroutine discipline.
func settle(t *testing.T, m *Manager, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		m.drainStatus()
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("manager did not settle in time")
}

func TestScanStartsOneWorkerPerDevice(t *testing.T) {
	tr := &fakeTransport{}
	tr.setDevices(dev(1, 4))
	m := newTestManager(tr, &fakeBackend{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.scan(ctx)
	if got := m.Devices(); len(got) != 1 || got[0] != "1:4" {
		t.Fatalf("registry = %v, want [1:4]", got)
	}

	// The same device on a later scan must not spawn a second worker.
	m.scan(ctx)
	if got := m.Devices(); len(got) != 1 {
		t.Fatalf("registry after rescan = %v, want one entry", got)
	}
	settle(t, m, func() bool { return tr.openCount() == 1 })

	cancel()
	settle(t, m, func() bool { return len(m.Devices()) == 0 })
}

func TestScanStopsVanishedDevices(t *testing.T) {
	tr := &fakeTransport{}
	tr.setDevices(dev(1, 4), dev(1, 5))
	b := &fakeBackend{}
	m := newTestManager(tr, b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.scan(ctx)
	if got := m.Devices(); len(got) != 2 {
		t.Fatalf("registry = %v, want two entries", got)
	}

	// Device 1:5 unplugs; its worker stops and the slot frees up.
	tr.setDevices(dev(1, 4))
	m.scan(ctx)
	if got := m.Devices(); len(got) != 1 || got[0] != "1:4" {
		t.Fatalf("registry after unplug = %v, want [1:4]", got)
	}

	cancel()
	settle(t, m, func() bool { return len(m.Devices()) == 0 })
}

func TestStartRejectsDuplicateDevice(t *testing.T) {
	tr := &fakeTransport{}
	m := newTestManager(tr, &fakeBackend{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.start(ctx, dev(1, 4)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.start(ctx, dev(1, 4)); !errors.Is(err, domain.ErrDuplicateDevice) {
		t.Fatalf("second start err = %v, want ErrDuplicateDevice", err)
	}

	cancel()
	settle(t, m, func() bool { return len(m.Devices()) == 0 })
}

func TestOpenFailureFreesRegistrySlot(t *testing.T) {
	tr := &fakeTransport{openErr: errors.New("permission denied")}
	tr.setDevices(dev(2, 1))
	m := newTestManager(tr, &fakeBackend{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.scan(ctx)
	// The worker's terminal report removes the dead entry, so the next
	// scan may retry the device.
	settle(t, m, func() bool { return len(m.Devices()) == 0 })

	tr.mu.Lock()
	tr.openErr = nil
	tr.mu.Unlock()
	m.scan(ctx)
	settle(t, m, func() bool { return len(m.Devices()) == 1 })

	cancel()
	settle(t, m, func() bool { return len(m.Devices()) == 0 })
}

func TestReapReleasesWorkerContext(t *testing.T) {
	tr := &fakeTransport{openErr: errors.New("permission denied")}
	tr.setDevices(dev(2, 1))
	m := newTestManager(tr, &fakeBackend{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.scan(ctx)
	settle(t, m, func() bool { return len(m.Devices()) == 0 })

	// The worker's child context must not stay registered on the
	// manager context after the entry is reaped; a flaky device
	// retried every scan would otherwise leak one per attempt.
	wctx := tr.lastOpenCtx()
	if wctx == nil {
		t.Fatal("transport open never happened")
	}
	select {
	case <-wctx.Done():
	default:
		t.Fatal("worker context still live after reap")
	}
}

func TestSetEDIDAppliesToNewWorkers(t *testing.T) {
	tr := &fakeTransport{}
	tr.setDevices(dev(1, 4))
	b := &fakeBackend{}
	m := newTestManager(tr, b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.scan(ctx)
	settle(t, m, func() bool { return len(b.connectedEDIDs()) == 1 })

	custom := make([]byte, 128)
	custom[0] = 0x42
	m.SetEDID(custom)

	tr.setDevices(dev(1, 4), dev(1, 5))
	m.scan(ctx)
	settle(t, m, func() bool { return len(b.connectedEDIDs()) == 2 })

	edids := b.connectedEDIDs()
	if edids[0][0] != 0x00 {
		t.Fatalf("first worker EDID byte 0 = 0x%02X, want default", edids[0][0])
	}
	if edids[1][0] != 0x42 {
		t.Fatalf("second worker EDID byte 0 = 0x%02X, want updated block", edids[1][0])
	}

	cancel()
	settle(t, m, func() bool { return len(m.Devices()) == 0 })
}

func TestRunShutsDownWorkers(t *testing.T) {
	tr := &fakeTransport{}
	tr.setDevices(dev(1, 4))
	m := newTestManager(tr, &fakeBackend{})
	m.cfg.ScanInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		tr.mu.Lock()
		opened := tr.opens > 0
		tr.mu.Unlock()
		if opened {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
