package pipeline

// State is the driver lifecycle position.
type State int32

const (
	Initializing State = iota
	Running
	Draining
	Interrupted
	Closed
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Interrupted:
		return "interrupted"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stats counts what the driver has seen so far.
type Stats struct {
	Received       uint64
	Accepted       uint64
	ParseFailures  uint64
	RenderFailures uint64
}
