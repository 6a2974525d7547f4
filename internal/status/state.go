package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/bus"
)

// State represents where the monitor loop currently is in its cycle.
type State string

const (
	// Idle means no scan is in progress (between cycles, or not started).
	Idle State = "IDLE"
	// Scanning means the loop is walking an account's channel listing.
	Scanning State = "SCANNING"
	// Refreshing means a session token is being re-acquired for an account.
	Refreshing State = "REFRESHING"
	// Dispatching means unread messages of a channel are being pushed.
	Dispatching State = "DISPATCHING"
)

// validTransitions defines the allowed monitor state transitions.
// Self-transitions are allowed where the loop moves to the next account
// or channel without passing through Idle.
var validTransitions = map[State][]State{
	Idle:        {Scanning},
	Scanning:    {Scanning, Refreshing, Dispatching, Idle},
	Refreshing:  {Scanning, Idle},
	Dispatching: {Dispatching, Scanning, Idle},
}

// Machine tracks and enforces monitor state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a state machine starting in Idle.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{current: Idle, bus: b}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns an error if the
// transition is not allowed.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil && from != to {
		m.bus.Publish(bus.Event{
			Kind:      "monitor.status_changed",
			Timestamp: time.Now(),
			Payload:   StatusChange{From: from, To: to},
		})
	}
	return nil
}

// StatusChange is the payload for monitor.status_changed events.
type StatusChange struct {
	From State
	To   State
}
