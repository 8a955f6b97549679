// Package stardrive provides a user-space driver engine for DisplayLink
// USB docks: it discovers matching devices, presents one virtual display
// per device, and streams compressed pixel updates over the device's
// proprietary USB protocol.
//
// The raw USB transport and the virtual-display backend are supplied by
// the host integration through the Transport and DisplayBackend
// interfaces; the engine contains the protocol, codec, timing and
// lifecycle logic.
//
// Example usage:
//
//	cfg := stardrive.DefaultConfig()
//	s, err := stardrive.New(cfg, transport, backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := s.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package stardrive

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	logAdapter "github.com/SWORDIntel/STARDRIVE/internal/adapters/log"
	"github.com/SWORDIntel/STARDRIVE/internal/cliconfig"
	"github.com/SWORDIntel/STARDRIVE/internal/driver"
	"github.com/SWORDIntel/STARDRIVE/internal/manager"
	"github.com/SWORDIntel/STARDRIVE/internal/ports"
)

// Config holds the configuration for the driver engine.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// Logger is the structured logging interface used throughout the engine.
type Logger = ports.Logger

// Field is a structured logging key-value pair.
type Field = ports.Field

// String creates a string log field.
func String(key, value string) Field { return ports.String(key, value) }

// Err creates an error log field.
func Err(err error) Field { return ports.Err(err) }

// Transport is the USB host abstraction the engine drives devices through.
type Transport = ports.Transport

// DisplayBackend is the virtual-display abstraction the engine consumes.
type DisplayBackend = ports.DisplayBackend

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// DefaultEDID is the built-in 1920x1080 EDID block advertised when no
// EDID file is configured.
func DefaultEDID() []byte {
	return cliconfig.DefaultEDID
}

// Plugin extends a running Service. Start is called once before the
// device manager loop begins; Stop is called during shutdown.
type Plugin interface {
	Name() string
	Start(ctx context.Context, rt *Runtime) error
	Stop() error
}

// Runtime is the surface plugins may touch on a running service.
type Runtime struct {
	svc *Service
}

// Config returns the service configuration.
func (r *Runtime) Config() Config { return r.svc.cfg }

// Logger returns the service logger.
func (r *Runtime) Logger() Logger { return r.svc.log }

// SetEDID replaces the EDID advertised to subsequently connected
// devices. The block is validated first.
func (r *Runtime) SetEDID(edid []byte) error {
	if err := cliconfig.ValidateEDID(edid); err != nil {
		return err
	}
	r.svc.mgr.SetEDID(edid)
	return nil
}

type options struct {
	logger  ports.Logger
	plugins []Plugin
}

// Option customizes a Service.
type Option func(*options)

// WithLogger replaces the default console logger.
func WithLogger(l Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithZerolog replaces the default logger with an adapter over an
// existing zerolog.Logger.
func WithZerolog(l zerolog.Logger) Option {
	return func(o *options) { o.logger = logAdapter.NewZerologAdapterWithLogger(l) }
}

// WithPlugin registers a plugin.
func WithPlugin(p Plugin) Option {
	return func(o *options) { o.plugins = append(o.plugins, p) }
}

// Service is one configured driver engine instance.
type Service struct {
	cfg     Config
	log     ports.Logger
	mgr     *manager.Manager
	plugins []Plugin

	mu      sync.Mutex
	running bool
}

// New creates a Service. The transport and backend are the host's HAL;
// see the sim adapter for an in-memory pair.
func New(cfg Config, transport Transport, backend DisplayBackend, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if transport == nil || backend == nil {
		return nil, fmt.Errorf("transport and backend are required")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logAdapter.NewZerologAdapter()
	}

	edid, err := cliconfig.LoadEDID(cfg.EDIDPath)
	if err != nil {
		return nil, err
	}

	drvCfg := driver.DefaultConfig()
	drvCfg.EDID = edid
	drvCfg.ControlTimeout = cfg.ControlTimeout
	drvCfg.TransferTimeout = cfg.TransferTimeout
	drvCfg.QueueDepth = cfg.QueueDepth

	mgr := manager.New(transport, backend, manager.Config{
		VendorID:     cfg.VendorID,
		ProductID:    cfg.ProductID,
		ScanInterval: cfg.ScanInterval,
		Driver:       drvCfg,
	}, o.logger)

	return &Service{
		cfg:     cfg,
		log:     o.logger,
		mgr:     mgr,
		plugins: o.plugins,
	}, nil
}

// Run starts the plugins and the device manager and blocks until the
// context is canceled. It may be called once per Service.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("stardrive: already running")
	}
	s.running = true
	s.mu.Unlock()

	rt := &Runtime{svc: s}
	for _, p := range s.plugins {
		if err := p.Start(ctx, rt); err != nil {
			return fmt.Errorf("start plugin %s: %w", p.Name(), err)
		}
		s.log.Info("plugin started", ports.String("plugin", p.Name()))
	}
	defer func() {
		for _, p := range s.plugins {
			if err := p.Stop(); err != nil {
				s.log.Warn("plugin stop failed",
					ports.String("plugin", p.Name()), ports.Err(err))
			}
		}
	}()

	return s.mgr.Run(ctx)
}

// Run creates a Service and runs it in one call.
func Run(ctx context.Context, cfg Config, transport Transport, backend DisplayBackend, opts ...Option) error {
	s, err := New(cfg, transport, backend, opts...)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

// LoadEDID reads and validates an EDID block from a file; an empty path
// returns the built-in default.
func LoadEDID(path string) ([]byte, error) {
	return cliconfig.LoadEDID(path)
}
