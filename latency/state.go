package latency

import "fmt"

// State is the connection state of a Generator.
type State int

// Generator states. A generator moves through them at most once per run.
const (
	Idle State = iota
	Connecting
	Connected
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Closed:
		return "Closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var legalTransitions = map[State][]State{
	Idle:       {Connecting, Closed},
	Connecting: {Connected, Closed},
	Connected:  {Closed},
}

func canMove(from, to State) bool {
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}

	return false
}
