package cliconfig

import (
	"bytes"
	"fmt"
	"os"
)

// EDIDBlockSize is the size of one base EDID block.
const EDIDBlockSize = 128

// edidMagic is the fixed 8-byte EDID header.
var edidMagic = []byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}

// DefaultEDID advertises a generic 1920x1080 display. Used when no EDID
// file is configured.
var DefaultEDID = []byte{
	0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0x10, 0xAC, 0x4F, 0xA0,
	0x4C, 0x50, 0x39, 0x30, 0x1E, 0x1D, 0x01, 0x04, 0xA5, 0x34, 0x20, 0x78,
	0xFB, 0x6C, 0xE5, 0xA5, 0x55, 0x50, 0xA0, 0x23, 0x0B, 0x50, 0x54, 0xA5,
	0x4B, 0x00, 0x81, 0x80, 0xA9, 0x40, 0xD1, 0x00, 0x71, 0x4F, 0x01, 0x01,
	0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x02, 0x3A, 0x80, 0x18, 0x71, 0x38,
	0x2D, 0x40, 0x58, 0x2C, 0x45, 0x00, 0x09, 0x25, 0x21, 0x00, 0x00, 0x1E,
	0x00, 0x00, 0x00, 0xFF, 0x00, 0x48, 0x56, 0x4E, 0x44, 0x59, 0x30, 0x39,
	0x50, 0x4C, 0x00, 0x0A, 0x20, 0x20, 0x00, 0x00, 0x00, 0xFC, 0x00, 0x44,
	0x45, 0x4C, 0x4C, 0x20, 0x50, 0x32, 0x34, 0x31, 0x34, 0x48, 0x0A, 0x20,
	0x00, 0x00, 0x00, 0xFD, 0x00, 0x38, 0x4C, 0x1E, 0x53, 0x11, 0x00, 0x0A,
	0x20, 0x20, 0x20, 0x20, 0x20, 0x20, 0x01, 0x08,
}

// ValidateEDID checks that a block is at least one full EDID block and
// starts with the EDID header.
func ValidateEDID(edid []byte) error {
	if len(edid) < EDIDBlockSize {
		return fmt.Errorf("edid too short: %d bytes, need %d", len(edid), EDIDBlockSize)
	}
	if !bytes.Equal(edid[:8], edidMagic) {
		return fmt.Errorf("edid header mismatch")
	}
	return nil
}

// LoadEDID reads and validates the EDID block to advertise. An empty
// path returns the built-in default.
func LoadEDID(path string) ([]byte, error) {
	if path == "" {
		return DefaultEDID, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read edid: %w", err)
	}
	if err := ValidateEDID(b); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}
