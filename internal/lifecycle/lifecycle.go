// Package lifecycle implements the endpoint state machine: initialising ->
// running -> closing -> closed. It wraps looplab/fsm directly for this
// fixed four-state, seven-event machine shared by every endpoint.
// file: internal/lifecycle/lifecycle.go
package lifecycle

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	lfsm "github.com/looplab/fsm"

	"github.com/dkoosis/bsonrpc/internal/logging"
)

// State names for the endpoint lifecycle.
const (
	StateInitialising = "initialising"
	StateRunning      = "running"
	StateClosing      = "closing"
	StateClosed       = "closed"
)

// Event names that drive lifecycle transitions.
const (
	EventStart         = "started"
	EventCloseRequest  = "closeRequested"
	EventPeerEOF       = "peerEOF"
	EventFramingFatal  = "framingFatal"
	EventSendFatal     = "sendFatal"
	EventAbort         = "abort"
	EventDrained       = "drained"
)

// Machine is the endpoint lifecycle state machine. A Machine is safe for
// concurrent use: multiple goroutines (the receiver noticing peer EOF, a
// handler calling abort, the caller calling Close) may fire closing events
// concurrently and only the first succeeds.
type Machine struct {
	mu  sync.Mutex
	fsm *lfsm.FSM
	log logging.Logger
}

// New builds a lifecycle machine starting in StateInitialising.
func New(log logging.Logger) *Machine {
	if log == nil {
		log = logging.GetNoopLogger()
	}
	m := &Machine{log: log.WithField("component", "lifecycle")}
	m.fsm = lfsm.NewFSM(StateInitialising, []lfsm.EventDesc{
		{Name: EventStart, Src: []string{StateInitialising}, Dst: StateRunning},
		{Name: EventCloseRequest, Src: []string{StateRunning}, Dst: StateClosing},
		{Name: EventPeerEOF, Src: []string{StateRunning}, Dst: StateClosing},
		{Name: EventFramingFatal, Src: []string{StateRunning}, Dst: StateClosing},
		{Name: EventSendFatal, Src: []string{StateRunning}, Dst: StateClosing},
		{Name: EventAbort, Src: []string{StateRunning}, Dst: StateClosing},
		{Name: EventDrained, Src: []string{StateClosing}, Dst: StateClosed},
	}, lfsm.Callbacks{})
	return m
}

// Current returns the current lifecycle state.
func (m *Machine) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fsm.Current()
}

// Fire attempts to trigger event. It returns nil on success. If the machine
// is already in (or past) the target state for this event — e.g. a second
// close request arriving after the first already moved the machine to
// closing — Fire reports that as "already there" rather than an error, so
// close-style events are idempotent for every caller.
func (m *Machine) Fire(ctx context.Context, event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.fsm.Event(ctx, event)
	if err == nil {
		m.log.Debug("Lifecycle transition.", "event", event, "state", m.fsm.Current())
		return nil
	}

	var noTransition lfsm.NoTransitionError
	if errors.As(err, &noTransition) {
		// Already in the destination state's terminal condition for this
		// event (e.g. closing fired twice); treat as a harmless no-op.
		m.log.Debug("Lifecycle event ignored; no transition from current state.", "event", event, "state", m.fsm.Current())
		return nil
	}
	var invalidEvent lfsm.InvalidEventError
	if errors.As(err, &invalidEvent) {
		m.log.Debug("Lifecycle event not valid from current state.", "event", event, "state", m.fsm.Current())
		return nil
	}
	return errors.Wrapf(err, "lifecycle: event %q from state %q", event, m.fsm.Current())
}

// IsClosing reports whether the machine has left StateRunning.
func (m *Machine) IsClosing() bool {
	s := m.Current()
	return s == StateClosing || s == StateClosed
}

// IsClosed reports whether the machine reached StateClosed.
func (m *Machine) IsClosed() bool {
	return m.Current() == StateClosed
}
