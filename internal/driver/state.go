package driver

import (
	"fmt"

	"github.com/SWORDIntel/STARDRIVE/internal/domain"
	"github.com/SWORDIntel/STARDRIVE/internal/ports"
)

// State represents the lifecycle state of one device driver.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateIdle
	StateModeActive
	StateBlanked
	StateTerminating
	StateClosed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateInitializing:
		return "Initializing"
	case StateIdle:
		return "Idle"
	case StateModeActive:
		return "ModeActive"
	case StateBlanked:
		return "Blanked"
	case StateTerminating:
		return "Terminating"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// transitionTo validates and applies a state transition. Blanked is a
// sub-state of ModeActive: it is entered only from ModeActive and left
// only back to ModeActive or into teardown.
func (d *Driver) transitionTo(newState State, reason string) error {
	d.mu.Lock()
	oldState := d.state

	valid := false
	switch oldState {
	case StateUninitialized:
		valid = newState == StateInitializing
	case StateInitializing:
		valid = newState == StateIdle || newState == StateTerminating || newState == StateClosed
	case StateIdle:
		valid = newState == StateModeActive || newState == StateTerminating
	case StateModeActive:
		valid = newState == StateModeActive || newState == StateBlanked || newState == StateTerminating
	case StateBlanked:
		valid = newState == StateModeActive || newState == StateTerminating
	case StateTerminating:
		valid = newState == StateClosed
	case StateClosed:
		valid = false
	}
	if !valid {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", domain.ErrTerminated, oldState, newState)
	}

	d.state = newState
	d.mu.Unlock()

	d.log.Debug("state transition",
		ports.String("from", oldState.String()),
		ports.String("to", newState.String()),
		ports.String("reason", reason),
	)
	return nil
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}
