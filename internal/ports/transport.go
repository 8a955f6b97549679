package ports

import (
	"context"
	"fmt"
)

// DeviceInfo identifies one enumerated USB device.
type DeviceInfo struct {
	Bus       int
	Address   int
	VendorID  uint16
	ProductID uint16
}

// Key returns the stable device identifier "{bus}:{address}".
// It survives re-enumeration for as long as the device stays plugged in.
func (d DeviceInfo) Key() string {
	return fmt.Sprintf("%d:%d", d.Bus, d.Address)
}

// Transport is the USB host abstraction: enumeration and connection
// opening. Implementations wrap usbfs, a libusb binding, or a fake.
type Transport interface {
	// Enumerate lists the currently connected devices matching the
	// given vendor/product identifiers.
	Enumerate(ctx context.Context, vendorID, productID uint16) ([]DeviceInfo, error)

	// Open opens a connection to an enumerated device. The returned
	// Conn is exclusively owned by the caller until Close.
	Open(ctx context.Context, info DeviceInfo) (Conn, error)
}

// Conn is one open USB device connection. All methods are issued by a
// single worker goroutine; implementations need not serialize callers.
type Conn interface {
	// DetachKernelDriver detaches a conflicting kernel driver from the
	// interface. Returns nil when no driver is attached.
	DetachKernelDriver(iface int) error

	// ClaimInterface claims the interface for exclusive use.
	ClaimInterface(iface int) error

	// ControlTransfer issues a vendor control transfer on the default
	// pipe. A nil payload sends a zero-length request.
	ControlTransfer(ctx context.Context, request uint8, value uint16, payload []byte) error

	// BulkTransfer writes one transfer unit to the bulk OUT endpoint
	// and returns the bytes accepted.
	BulkTransfer(ctx context.Context, p []byte) (int, error)

	// ReleaseInterface releases a claimed interface.
	ReleaseInterface(iface int) error

	// Close releases the connection. Safe to call after failures.
	Close() error
}
