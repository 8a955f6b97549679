// Package edidwatcher provides EDID file monitoring for stardrive.
// When enabled, it watches the configured EDID file for changes and
// hands the fresh block to the engine, so the next hot-plugged device
// advertises it. Already-connected displays are not re-advertised.
package edidwatcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	stardrive "github.com/SWORDIntel/STARDRIVE"
)

// Config holds configuration options for the EDID watcher plugin.
type Config struct {
	// DebounceDelay is the delay to wait after a file change before
	// reloading. Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 100 * time.Millisecond,
	}
}

// Plugin implements EDID file watching.
type Plugin struct {
	mu sync.Mutex

	debounceDelay time.Duration

	rt       *stardrive.Runtime
	path     string
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
}

// New creates a new EDID watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = DefaultConfig().DebounceDelay
	}
	return &Plugin{debounceDelay: cfg.DebounceDelay}
}

// Name implements stardrive.Plugin.
func (p *Plugin) Name() string { return "edidwatcher" }

// Start implements stardrive.Plugin. With no EDID file configured there
// is nothing to watch and Start is a no-op.
func (p *Plugin) Start(ctx context.Context, rt *stardrive.Runtime) error {
	path := rt.Config().EDIDPath
	if path == "" {
		rt.Logger().Info("edid watcher idle: no edid file configured")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors replace files rather than rewrite
	// them, which would drop a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}

	wctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.rt = rt
	p.path = path
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer watcher.Close()
		p.run(wctx, watcher)
	}()
	return nil
}

// Stop implements stardrive.Plugin.
func (p *Plugin) Stop() error {
	p.mu.Lock()
	cancel := p.cancel
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	return nil
}

func (p *Plugin) run(ctx context.Context, watcher *fsnotify.Watcher) {
	log := p.rt.Logger()
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(p.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.debounceReload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn("edid watcher error", stardrive.Err(err))
		}
	}
}

// debounceReload collapses bursts of file events into one reload.
func (p *Plugin) debounceReload() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, p.reload)
}

func (p *Plugin) reload() {
	log := p.rt.Logger()
	edid, err := stardrive.LoadEDID(p.path)
	if err != nil {
		log.Warn("edid reload rejected", stardrive.Err(err))
		return
	}
	if err := p.rt.SetEDID(edid); err != nil {
		log.Warn("edid reload rejected", stardrive.Err(err))
		return
	}
	log.Info("edid reloaded", stardrive.String("path", p.path))
}
