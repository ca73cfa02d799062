package authflow

import (
	"slices"

	"github.com/tendant/simple-sso/pkg/reason"
)

// State is a step of a login attempt.
type State string

const (
	Idle             State = "IDLE"
	AwaitingCallback State = "AWAITING_CALLBACK"
	StateValidated   State = "STATE_VALIDATED"
	TokenExchanged   State = "TOKEN_EXCHANGED"
	IdentityFetched  State = "IDENTITY_FETCHED"
	PipelinePassed   State = "PIPELINE_PASSED"
	AccountResolved  State = "ACCOUNT_RESOLVED"
	Succeeded        State = "SUCCEEDED"
	Aborted          State = "ABORTED"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Succeeded || s == Aborted
}

// forward lists the only non-abort successor of each state. Aborted is
// reachable from every non-terminal state.
var forward = map[State]State{
	Idle:             AwaitingCallback,
	AwaitingCallback: StateValidated,
	StateValidated:   TokenExchanged,
	TokenExchanged:   IdentityFetched,
	IdentityFetched:  PipelinePassed,
	PipelinePassed:   AccountResolved,
	AccountResolved:  Succeeded,
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == Aborted {
		return true
	}
	next, ok := forward[from]
	return ok && next == to
}

// machine tracks the current state of one attempt and the states it passed.
type machine struct {
	trail []State
}

func newMachine(start State) *machine {
	return &machine{trail: []State{start}}
}

func (m *machine) current() State {
	return m.trail[len(m.trail)-1]
}

// to moves forward. An illegal step is a programming error and surfaces as
// Unexpected.
func (m *machine) to(next State) error {
	from := m.current()
	if !CanTransition(from, next) {
		return reason.Newf(reason.Unexpected, "illegal transition %s -> %s", from, next)
	}
	m.trail = append(m.trail, next)
	return nil
}

// abort moves to Aborted and returns the state the attempt was in.
func (m *machine) abort() State {
	from := m.current()
	if !from.Terminal() {
		m.trail = append(m.trail, Aborted)
	}
	return from
}

func (m *machine) history() []State {
	return slices.Clone(m.trail)
}
