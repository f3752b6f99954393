// Package automaton tracks the lifecycle of one node over one day.
package automaton

import (
	"fmt"
	"strings"
	"time"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/model"
)

// State is a lifecycle stage of a node.
type State string

const (
	Idle      State = "idle"
	Queued    State = "queued"
	Submitted State = "submitted"
	Active    State = "active"
	Complete  State = "complete"
	Aborted   State = "aborted"
)

// Terminal reports whether no further transition leaves s.
func (s State) Terminal() bool {
	return s == Complete || s == Aborted
}

// ParseState converts a state name, case-insensitively.
func ParseState(name string) (State, error) {
	switch s := State(strings.ToLower(strings.TrimSpace(name))); s {
	case Idle, Queued, Submitted, Active, Complete, Aborted:
		return s, nil
	default:
		return "", fmt.Errorf("unknown automaton state %q", name)
	}
}

// DefaultStopStates are the states after which same-day events are not fed.
var DefaultStopStates = []State{Complete, Aborted}

// successors is the regular lifecycle order. Complete and Aborted are also
// reachable from every non-terminal state; see next.
var successors = map[State]map[model.NodeStatus]State{
	Idle:      {model.StatusQueued: Queued},
	Queued:    {model.StatusSubmitted: Submitted},
	Submitted: {model.StatusActive: Active},
	Active:    {},
}

func next(s State, status model.NodeStatus) (State, bool) {
	if s.Terminal() {
		return s, false
	}
	switch status {
	case model.StatusComplete:
		return Complete, true
	case model.StatusAborted:
		return Aborted, true
	}
	to, ok := successors[s][status]
	return to, ok
}

// Automaton consumes ordered status events for one (node, day) and records
// each accepted transition. It is not safe for concurrent use.
type Automaton struct {
	name        string
	state       State
	timeline    []model.TimePoint
	diagnostics []model.Diagnostic
}

// New returns an automaton in the Idle state. name is used in diagnostics.
func New(name string) *Automaton {
	return &Automaton{name: name, state: Idle}
}

// State returns the current state.
func (a *Automaton) State() State { return a.state }

// TimePoints returns a copy of the accepted transitions, oldest first.
func (a *Automaton) TimePoints() []model.TimePoint {
	return append([]model.TimePoint(nil), a.timeline...)
}

// Diagnostics returns a copy of the rejected events so far.
func (a *Automaton) Diagnostics() []model.Diagnostic {
	return append([]model.Diagnostic(nil), a.diagnostics...)
}

// Trigger feeds one status event. An event that is not a legal successor of
// the current state, or that is older than the last accepted transition, is
// rejected: state and timeline stay unchanged and a diagnostic is returned and
// kept. Unknown statuses are ignored without a diagnostic.
func (a *Automaton) Trigger(status model.NodeStatus, at time.Time) *model.Diagnostic {
	if status == model.StatusUnknown {
		return nil
	}

	to, ok := next(a.state, status)
	if ok && len(a.timeline) > 0 && at.Before(a.timeline[len(a.timeline)-1].Time) {
		ok = false
	}
	if !ok {
		d := model.Diagnostic{
			Kind:    model.AutomatonOutOfSequence,
			Message: fmt.Sprintf("%s: %s at %s not allowed in state %s", a.name, status, at.Format(time.DateTime), a.state),
		}
		a.diagnostics = append(a.diagnostics, d)
		return &d
	}

	a.state = to
	a.timeline = append(a.timeline, model.TimePoint{Status: status, Time: at})
	return nil
}
