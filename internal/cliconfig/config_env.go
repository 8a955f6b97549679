package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (STARDRIVE_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	if err := s.setUSBID("vid", os.Getenv("STARDRIVE_VENDOR_ID"), &cfg.VendorID); err != nil {
		return err
	}
	if err := s.setUSBID("pid", os.Getenv("STARDRIVE_PRODUCT_ID"), &cfg.ProductID); err != nil {
		return err
	}

	s.setString("edid", os.Getenv("STARDRIVE_EDID_PATH"), &cfg.EDIDPath)
	s.setString("log-level", os.Getenv("STARDRIVE_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("scan-interval", os.Getenv("STARDRIVE_SCAN_INTERVAL"), &cfg.ScanInterval); err != nil {
		return err
	}
	if err := s.setDuration("control-timeout", os.Getenv("STARDRIVE_CONTROL_TIMEOUT"), &cfg.ControlTimeout); err != nil {
		return err
	}
	if err := s.setDuration("transfer-timeout", os.Getenv("STARDRIVE_TRANSFER_TIMEOUT"), &cfg.TransferTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("queue-depth", os.Getenv("STARDRIVE_QUEUE_DEPTH"), &cfg.QueueDepth); err != nil {
		return err
	}

	s.setBoolFromString("watch-edid", os.Getenv("STARDRIVE_WATCH_EDID"), &cfg.WatchEDID)
	s.setBoolFromString("once", os.Getenv("STARDRIVE_ONCE"), &cfg.Once)

	return nil
}
