package lifecycle

import "time"

// State is the lifecycle state of a rankflow instance.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// EventEmitter is called when lifecycle state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Manager tracks the state machine and the workers of one instance.
type Manager interface {
	State() State
	CanStart() bool
	CanStop() bool

	// TransitionTo returns an error if the transition is not allowed.
	TransitionTo(newState State, reason string) error

	// WaitWithTimeout returns ErrShutdownTimeout if workers outlive timeout.
	WaitWithTimeout(timeout time.Duration) error

	AddWorker()
	WorkerDone()
}
