// Package domain contains the core value types for the stardrive driver.
//
// This package represents the innermost layer of the module. It has no
// dependencies on infrastructure concerns (USB, virtual displays, logging)
// and contains only the data model and its invariants.
//
// # Types
//
//   - [DisplayMode]: register-level timing for one resolution/refresh pair
//   - [FrameBuffer]: the owned 32-bit pixel store for one device
//   - [DamageRect]: a changed sub-region of the frame
//   - [Run]: one unit of run-length encoded pixel output
//
// # Design Principles
//
// Domain types are:
//   - Plain values, cheap to copy (FrameBuffer excepted, which owns pixels)
//   - Free of infrastructure dependencies
//   - Testable without mocks or external systems
package domain
