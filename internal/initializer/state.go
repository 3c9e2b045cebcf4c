package initializer

import "fmt"

type Phase int

const (
	PhasePending Phase = iota
	PhaseRetrying
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseRetrying:
		return "retrying"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

type Event int

const (
	EventConnectSucceeded Event = iota + 1
	EventConnectFailed
	EventSchemaCreated
	EventSchemaFailed
	EventAborted
)

// State is a snapshot of the initialization protocol.
type State struct {
	Phase       Phase
	RetriesLeft int
	Attempts    int
	Connected   bool
}

// Initial returns the state before the first connection attempt.
func Initial(retries int) State {
	return State{Phase: PhasePending, RetriesLeft: retries}
}

// Terminal reports whether no further event can change s.
func (s State) Terminal() bool {
	return s.Phase == PhaseReady || s.Phase == PhaseFailed
}

func (s State) String() string {
	if s.Phase == PhaseRetrying {
		return fmt.Sprintf("retrying(%d)", s.RetriesLeft)
	}
	return s.Phase.String()
}

// Next applies ev to s. It has no side effects; Ready and Failed absorb
// every event.
func Next(s State, ev Event) State {
	if s.Terminal() {
		return s
	}

	switch ev {
	case EventConnectSucceeded:
		s.Attempts++
		s.Connected = true
	case EventConnectFailed:
		if s.Connected {
			return s
		}
		s.Attempts++
		s.RetriesLeft--
		if s.RetriesLeft <= 0 {
			s.RetriesLeft = 0
			s.Phase = PhaseFailed
		} else {
			s.Phase = PhaseRetrying
		}
	case EventSchemaCreated:
		if s.Connected {
			s.Phase = PhaseReady
		}
	case EventSchemaFailed, EventAborted:
		s.Phase = PhaseFailed
	}
	return s
}
