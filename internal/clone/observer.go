package clone

// State of a stage as seen by an Observer.
type State int

const (
	StateRunning State = iota
	StateDone
	StateSkipped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateSkipped:
		return "skipped"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Event reports a stage transition.
type Event struct {
	Stage Stage
	State State
	Err   error
}

// Observer receives stage transitions synchronously on the clone's goroutine.
type Observer func(Event)
