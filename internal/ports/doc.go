// Package ports defines the interfaces (ports) that connect the driver
// core to its external collaborators.
//
// The raw USB transport and the virtual-display backend are out of
// scope for this module; they are consumed entirely through these
// interfaces. The driver and manager depend only on the ports, which
// keeps the command pipeline testable with in-memory fakes and lets a
// host integration supply whatever HAL it has (usbfs, libusb bindings,
// an EVDI wrapper).
//
// # Port Interfaces
//
//   - [Transport]: USB device enumeration and connection opening
//   - [Conn]: one claimed USB connection (control and bulk transfers)
//   - [DisplayBackend]: virtual-display device creation
//   - [BackendConn]: one connected virtual display (EDID, pixel grabs, events)
//   - [EventHandler]: per-event callbacks, implemented by the device driver
//   - [Logger]: structured logging abstraction
package ports
