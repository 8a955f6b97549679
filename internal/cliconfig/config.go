package cliconfig

import (
	"fmt"
	"strconv"
	"time"
)

// Default USB identifiers: StarTech USB35DOCK (DisplayLink family).
const (
	DefaultVendorID  = 0x17E9
	DefaultProductID = 0x4307
)

// Config holds CLI configuration for stardrive.
type Config struct {
	VendorID  uint16
	ProductID uint16

	EDIDPath string

	ScanInterval    time.Duration
	ControlTimeout  time.Duration
	TransferTimeout time.Duration

	QueueDepth int
	LogLevel   string

	Sim       bool
	WatchEDID bool

	// Once performs a single enumeration pass and exits. Diagnostic.
	Once bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		VendorID:        DefaultVendorID,
		ProductID:       DefaultProductID,
		ScanInterval:    2 * time.Second,
		ControlTimeout:  time.Second,
		TransferTimeout: 2 * time.Second,
		QueueDepth:      64,
		LogLevel:        "info",
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.VendorID == 0 {
		return fmt.Errorf("vendor id is required")
	}
	if c.ProductID == 0 {
		return fmt.Errorf("product id is required")
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("scan interval must be positive")
	}
	if c.ControlTimeout <= 0 {
		return fmt.Errorf("control timeout must be positive")
	}
	if c.TransferTimeout <= 0 {
		return fmt.Errorf("transfer timeout must be positive")
	}
	if c.QueueDepth <= 0 {
		return fmt.Errorf("queue depth must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// ParseUSBID parses a USB vendor or product identifier given as a
// decimal or 0x-prefixed hex string.
func ParseUSBID(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("parse usb id %q: %w", s, err)
	}
	return uint16(v), nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setUSBID parses and sets a USB identifier if valid and flag not changed.
func (s *configSetter) setUSBID(flag, value string, dst *uint16) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	id, err := ParseUSBID(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = id
	return nil
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
