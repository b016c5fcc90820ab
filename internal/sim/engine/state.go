package engine

type State int32

const (
	Idle State = iota
	TickRunning
	Resolving
	Persisted
	Halted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case TickRunning:
		return "tick_running"
	case Resolving:
		return "resolving"
	case Persisted:
		return "persisted"
	case Halted:
		return "halted"
	}
	return "unknown"
}
