package workflow

import "fmt"

// State is the pipeline orchestrator's position in its state machine.
type State int

const (
	StateIdle State = iota
	StateExploring
	StateEngineering
	StateCrystallizing
	StateDone
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExploring:
		return "exploring"
	case StateEngineering:
		return "engineering"
	case StateCrystallizing:
		return "crystallizing"
	case StateDone:
		return "done"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

func (s State) IsTerminal() bool {
	return s == StateDone || s == StateErrored
}

// Phase maps a running state to the phase it executes.
func (s State) Phase() Phase {
	switch s {
	case StateExploring:
		return PhaseExplore
	case StateEngineering:
		return PhaseEngineer
	case StateCrystallizing:
		return PhaseCrystallize
	default:
		return PhaseNone
	}
}

// CanTransition reports whether the state machine allows s -> to.
// Errored is reachable from every non-terminal state.
func (s State) CanTransition(to State) bool {
	if s.IsTerminal() {
		return false
	}
	if to == StateErrored {
		return true
	}
	switch s {
	case StateIdle:
		return to == StateExploring
	case StateExploring:
		return to == StateEngineering
	case StateEngineering:
		return to == StateCrystallizing
	case StateCrystallizing:
		return to == StateDone
	default:
		return false
	}
}

// Machine tracks the current state and rejects illegal transitions.
// It is not safe for concurrent use; the orchestrator owns it.
type Machine struct {
	current State
	history []State
}

func (m *Machine) Current() State {
	return m.current
}

// History returns every state entered after Idle, in order.
func (m *Machine) History() []State {
	return append([]State(nil), m.history...)
}

func (m *Machine) Transition(to State) error {
	if !m.current.CanTransition(to) {
		return fmt.Errorf("workflow: illegal transition %s -> %s", m.current, to)
	}
	m.current = to
	m.history = append(m.history, to)
	return nil
}
