package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations and USB
// identifiers to make TOML friendly (identifiers are usually written
// in hex).
type FileConfig struct {
	VendorID        string `toml:"vendor_id"`
	ProductID       string `toml:"product_id"`
	EDIDPath        string `toml:"edid_path"`
	ScanInterval    string `toml:"scan_interval"`
	ControlTimeout  string `toml:"control_timeout"`
	TransferTimeout string `toml:"transfer_timeout"`
	QueueDepth      int    `toml:"queue_depth"`
	LogLevel        string `toml:"log_level"`
	WatchEDID       *bool  `toml:"watch_edid"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.stardrive/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".stardrive", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	if err := s.setUSBID("vid", fc.VendorID, &cfg.VendorID); err != nil {
		return err
	}
	if err := s.setUSBID("pid", fc.ProductID, &cfg.ProductID); err != nil {
		return err
	}

	s.setString("edid", fc.EDIDPath, &cfg.EDIDPath)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("scan-interval", fc.ScanInterval, &cfg.ScanInterval); err != nil {
		return err
	}
	if err := s.setDuration("control-timeout", fc.ControlTimeout, &cfg.ControlTimeout); err != nil {
		return err
	}
	if err := s.setDuration("transfer-timeout", fc.TransferTimeout, &cfg.TransferTimeout); err != nil {
		return err
	}

	s.setInt("queue-depth", fc.QueueDepth, &cfg.QueueDepth)

	if fc.WatchEDID != nil && !changed["watch-edid"] {
		cfg.WatchEDID = *fc.WatchEDID
	}

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
