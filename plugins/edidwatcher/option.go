package edidwatcher

import stardrive "github.com/SWORDIntel/STARDRIVE"

// WithEDIDWatcher returns a stardrive Option that enables EDID file
// watching. When enabled, the plugin monitors the configured EDID file
// and applies changes to subsequently connected devices.
//
// Usage:
//
//	s, err := stardrive.New(cfg, transport, backend,
//	    edidwatcher.WithEDIDWatcher(edidwatcher.Config{
//	        DebounceDelay: 100 * time.Millisecond,
//	    }),
//	)
func WithEDIDWatcher(cfg Config) stardrive.Option {
	return stardrive.WithPlugin(New(cfg))
}

// WithDefaultEDIDWatcher returns a stardrive Option that enables EDID
// watching with default settings (debounce 100ms).
func WithDefaultEDIDWatcher() stardrive.Option {
	return WithEDIDWatcher(DefaultConfig())
}
