package session

// State is the lifecycle of a container's log session.
type State int

const (
	// Uninitialized sessions exist for a known container whose logs were never
	// opened.
	Uninitialized State = iota
	// LoadingInitial covers opening streams and the first tail read.
	LoadingInitial
	// Ready sessions accept tail, history and follow commands.
	Ready
	// Closed sessions were torn down. No transition leaves Closed.
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case LoadingInitial:
		return "loading"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
