package driver

import "github.com/SWORDIntel/STARDRIVE/internal/ports"

// The driver is the event handler for its own virtual display. Backend
// callbacks may arrive while a previous command sequence is still being
// written, so each callback only enqueues; the Run goroutine is the
// sole consumer and serializes all handling.
var _ ports.EventHandler = (*Driver)(nil)

// ModeChanged implements ports.EventHandler.
func (d *Driver) ModeChanged(req ports.ModeRequest) {
	d.enqueue(event{kind: evModeChanged, mode: req})
}

// PowerChanged implements ports.EventHandler.
func (d *Driver) PowerChanged(state ports.PowerState) {
	d.enqueue(event{kind: evPowerChanged, power: state})
}

// UpdateReady implements ports.EventHandler.
func (d *Driver) UpdateReady(bufferID int) {
	d.enqueue(event{kind: evUpdateReady, bufferID: bufferID})
}

// CursorSet implements ports.EventHandler.
func (d *Driver) CursorSet(state ports.CursorState) {
	d.enqueue(event{kind: evCursorSet, cursor: state})
}

// CursorMoved implements ports.EventHandler.
func (d *Driver) CursorMoved(x, y int) {
	d.enqueue(event{kind: evCursorMoved, x: x, y: y})
}

// MonitorControl implements ports.EventHandler.
func (d *Driver) MonitorControl(data []byte) {
	d.enqueue(event{kind: evMonitorControl, data: data})
}

// enqueue hands an event to the Run goroutine without ever blocking the
// backend's callback thread. A full queue means the device is busy with
// a long command sequence; update-ready events are coalesced into the
// pending flag (the grab always returns current pixels, so one deferred
// update covers any number of missed notifications) and everything else
// is logged rather than dropped silently.
func (d *Driver) enqueue(ev event) {
	select {
	case d.events <- ev:
	default:
		if ev.kind == evUpdateReady {
			d.pending.Store(true)
			d.log.Debug("update deferred, device busy", ports.String("device", d.id))
			return
		}
		d.log.Warn("event queue full, event dropped",
			ports.String("device", d.id), ports.Int("kind", int(ev.kind)))
	}
}
