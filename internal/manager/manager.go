// Package manager discovers matching USB devices and runs one driver
// worker per connected device.
//
// The scan loop is the only goroutine that mutates the device registry.
// Workers communicate back exclusively through a status channel, which
// the scan loop drains before diffing the bus; there is no shared
// mutable state between workers.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SWORDIntel/STARDRIVE/internal/domain"
	"github.com/SWORDIntel/STARDRIVE/internal/driver"
	"github.com/SWORDIntel/STARDRIVE/internal/ports"
)

// ShutdownTimeout is the maximum time to wait for workers on shutdown.
const ShutdownTimeout = 30 * time.Second

// Config holds manager settings.
type Config struct {
	// VendorID and ProductID select the devices to drive.
	VendorID  uint16
	ProductID uint16

	// ScanInterval is the enumeration polling period.
	ScanInterval time.Duration

	// Driver is the per-device configuration; its EDID is captured at
	// worker start, so SetEDID affects devices plugged in afterwards.
	Driver driver.Config
}

// entry is one registry slot: a running worker and its stop handle.
type entry struct {
	info   ports.DeviceInfo
	cancel context.CancelFunc
	done   chan struct{}
}

// status is a worker's terminal report.
type status struct {
	id  string
	err error
}

// Manager owns the device registry and the scan loop.
type Manager struct {
	transport ports.Transport
	backend   ports.DisplayBackend
	cfg       Config
	log       ports.Logger

	mu   sync.Mutex // guards edid only; the registry is scan-loop private
	edid []byte

	registry map[string]*entry
	statusCh chan status
	wg       sync.WaitGroup
}

// New creates a manager. The transport and backend are shared factories;
// every opened connection is exclusively owned by one worker.
func New(transport ports.Transport, backend ports.DisplayBackend, cfg Config, log ports.Logger) *Manager {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 2 * time.Second
	}
	return &Manager{
		transport: transport,
		backend:   backend,
		cfg:       cfg,
		log:       log,
		edid:      cfg.Driver.EDID,
		registry:  make(map[string]*entry),
		statusCh:  make(chan status, 16),
	}
}

// SetEDID replaces the EDID advertised by subsequently started workers.
// Already-connected displays keep the EDID they were created with.
func (m *Manager) SetEDID(edid []byte) {
	m.mu.Lock()
	m.edid = edid
	m.mu.Unlock()
	m.log.Info("EDID updated", ports.Int("bytes", len(edid)))
}

// Devices returns the identifiers currently in the registry. Intended
// for the scan goroutine and tests; the registry is scan-loop private.
func (m *Manager) Devices() []string {
	ids := make([]string, 0, len(m.registry))
	for id := range m.registry {
		ids = append(ids, id)
	}
	return ids
}

// Run scans the bus at the configured interval, starting a worker for
// each new matching device and stopping workers whose devices are gone.
// It returns once the context is canceled and all workers have stopped
// (or ShutdownTimeout expires).
func (m *Manager) Run(ctx context.Context) error {
	m.log.Info("device manager started",
		ports.Uint16("vid", m.cfg.VendorID),
		ports.Uint16("pid", m.cfg.ProductID),
		ports.Duration("scan_interval", m.cfg.ScanInterval))

	ticker := time.NewTicker(m.cfg.ScanInterval)
	defer ticker.Stop()

	m.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return m.shutdown()
		case st := <-m.statusCh:
			m.reap(st)
		case <-ticker.C:
			m.drainStatus()
			m.scan(ctx)
		}
	}
}

// drainStatus applies any queued terminal reports before a scan, so a
// crashed worker's slot is free to be re-created by the same scan.
func (m *Manager) drainStatus() {
	for {
		select {
		case st := <-m.statusCh:
			m.reap(st)
		default:
			return
		}
	}
}

// reap removes a terminated worker from the registry.
func (m *Manager) reap(st status) {
	e, ok := m.registry[st.id]
	if !ok {
		// A vanished device is removed by the scan before its late
		// terminal report drains.
		m.log.Debug("stale worker report",
			ports.String("device", st.id), ports.Err(domain.ErrUnknownDevice))
		return
	}
	<-e.done
	// Self-terminated workers never see their cancel called by the
	// vanished-device path; release it here or the child context stays
	// registered on the manager's context forever.
	e.cancel()
	delete(m.registry, st.id)
	if st.err != nil {
		m.log.Error("device worker failed", ports.String("device", st.id), ports.Err(st.err))
	} else {
		m.log.Info("device worker stopped", ports.String("device", st.id))
	}
}

// scan diffs one enumeration pass against the registry.
func (m *Manager) scan(ctx context.Context) {
	devices, err := m.transport.Enumerate(ctx, m.cfg.VendorID, m.cfg.ProductID)
	if err != nil {
		m.log.Warn("enumeration failed", ports.Err(err))
		return
	}

	seen := make(map[string]bool, len(devices))
	for _, info := range devices {
		id := info.Key()
		seen[id] = true
		if _, ok := m.registry[id]; ok {
			continue
		}
		if err := m.start(ctx, info); err != nil {
			m.log.Warn("device start rejected", ports.String("device", id), ports.Err(err))
		}
	}

	// Devices that disappeared from enumeration: stop their workers
	// and remove the entries once termination completes.
	for id, e := range m.registry {
		if seen[id] {
			continue
		}
		m.log.Info("device disconnected", ports.String("device", id))
		e.cancel()
		<-e.done
		delete(m.registry, id)
	}
}

// start opens the device and spawns its worker. The registry entry is
// added immediately; if initialization fails inside the worker, the
// terminal status removes it again.
func (m *Manager) start(ctx context.Context, info ports.DeviceInfo) error {
	id := info.Key()
	if _, ok := m.registry[id]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateDevice, id)
	}
	m.log.Info("device discovered",
		ports.String("device", id),
		ports.Uint16("vid", info.VendorID),
		ports.Uint16("pid", info.ProductID))

	wctx, cancel := context.WithCancel(ctx)
	e := &entry{info: info, cancel: cancel, done: make(chan struct{})}
	m.registry[id] = e

	cfg := m.cfg.Driver
	m.mu.Lock()
	cfg.EDID = m.edid
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(e.done)

		conn, err := m.transport.Open(wctx, info)
		if err != nil {
			m.report(status{id: id, err: err})
			return
		}
		drv := driver.New(id, conn, m.backend, cfg, m.log)
		m.report(status{id: id, err: drv.Run(wctx)})
	}()
	return nil
}

// report delivers a terminal status without blocking worker exit.
func (m *Manager) report(st status) {
	select {
	case m.statusCh <- st:
	default:
		// The scan loop is shutting down and no longer draining.
	}
}

// shutdown stops every worker and waits for them, bounded by
// ShutdownTimeout.
func (m *Manager) shutdown() error {
	for _, e := range m.registry {
		e.cancel()
	}
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.log.Info("device manager stopped")
		return nil
	case <-time.After(ShutdownTimeout):
		m.log.Warn("shutdown timeout, forcing exit", ports.Duration("timeout", ShutdownTimeout))
		return context.DeadlineExceeded
	}
}
