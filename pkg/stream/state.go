package stream

// State is the lifecycle position of a Controller.
type State int

const (
	Idle State = iota
	Connecting
	Streaming
	Completed
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Completed:
		return "completed"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// InFlight reports whether a request is open in this state.
func (s State) InFlight() bool {
	return s == Connecting || s == Streaming
}
