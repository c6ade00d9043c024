package triage

import (
	"fmt"

	"github.com/clinic/frontdesk/internal/platform/apperr"
)

// State is an attention status code as stored in attention_status.code.
type State string

const (
	Waiting    State = "waiting"
	InProgress State = "in_progress"
	Attended   State = "attended"
	Derived    State = "derived"
	Cancelled  State = "cancelled"
)

// Event drives a transition.
type Event string

const (
	Start  Event = "start"
	Attend Event = "attend"
	Derive Event = "derive"
	Cancel Event = "cancel"
)

var displayNames = map[State]string{
	Waiting:    "En espera",
	InProgress: "En atención",
	Attended:   "Atendido",
	Derived:    "Derivado",
	Cancelled:  "Cancelado",
}

// States lists every state in lifecycle order.
var States = []State{Waiting, InProgress, Attended, Derived, Cancelled}

var transitions = map[State]map[Event]State{
	Waiting: {
		Start:  InProgress,
		Attend: Attended,
		Derive: Derived,
		Cancel: Cancelled,
	},
	InProgress: {
		Attend: Attended,
		Derive: Derived,
		Cancel: Cancelled,
	},
}

// ErrIllegalTransition is wrapped by every rejected transition.
var ErrIllegalTransition = apperr.Conflict("illegal status transition")

func (s State) Valid() bool {
	_, ok := displayNames[s]
	return ok
}

// DisplayName is the label shown at the desk.
func (s State) DisplayName() string {
	return displayNames[s]
}

// Terminal reports whether no event leaves s.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// Transition applies e to s.
func Transition(s State, e Event) (State, error) {
	if next, ok := transitions[s][e]; ok {
		return next, nil
	}
	if !s.Valid() {
		return s, fmt.Errorf("unknown status %q: %w", s, ErrIllegalTransition)
	}
	return s, fmt.Errorf("cannot %s an attention that is %s: %w", e, s.DisplayName(), ErrIllegalTransition)
}

// EventFor returns the event that moves an attention into target.
func EventFor(target State) (Event, bool) {
	switch target {
	case InProgress:
		return Start, true
	case Attended:
		return Attend, true
	case Derived:
		return Derive, true
	case Cancelled:
		return Cancel, true
	}
	return "", false
}
