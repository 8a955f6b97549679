package domain

import "errors"

// Domain errors represent error conditions in the stardrive driver.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrInvalidMode is returned for a zero-sized or unreasonable display mode.
	ErrInvalidMode = errors.New("stardrive: invalid display mode")

	// ErrBufferTooSmall is returned when a destination buffer cannot hold the
	// worst-case compressed output for the requested region.
	ErrBufferTooSmall = errors.New("stardrive: buffer too small")

	// ErrRegisterRange is returned for a register address outside the known
	// device register windows.
	ErrRegisterRange = errors.New("stardrive: register address out of range")

	// ErrMalformedRect is returned for a damage rectangle that is empty or
	// not contained within the current frame bounds.
	ErrMalformedRect = errors.New("stardrive: malformed damage rectangle")

	// ErrTransport is returned for USB enumeration, claim and transfer failures.
	ErrTransport = errors.New("stardrive: transport failure")

	// ErrTransferTimeout is returned when a transport operation exceeds its deadline.
	ErrTransferTimeout = errors.New("stardrive: transfer timeout")

	// ErrBackend is returned when the virtual-display backend cannot be
	// created or connected.
	ErrBackend = errors.New("stardrive: display backend failure")

	// ErrDuplicateDevice is returned when a device identifier is already registered.
	ErrDuplicateDevice = errors.New("stardrive: duplicate device")

	// ErrUnknownDevice is returned for an operation on an unregistered device.
	ErrUnknownDevice = errors.New("stardrive: unknown device")

	// ErrTerminated is returned for an operation on a device whose worker
	// has already shut down.
	ErrTerminated = errors.New("stardrive: device terminated")
)
