// Package situation classifies a node's daily lifecycle from its status records.
package situation

import (
	"time"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/automaton"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/model"
)

// Kind is the outcome of a node on one day.
type Kind string

const (
	KindComplete   Kind = "complete"
	KindAborted    Kind = "aborted"
	KindIncomplete Kind = "incomplete" // some events, no terminal state
	KindMissing    Kind = "missing"    // no accepted events at all
)

// Record is the situation of one node on one calendar day.
type Record struct {
	Date        time.Time          `json:"date"`
	State       automaton.State    `json:"state"`
	Kind        Kind               `json:"kind"`
	TimePoints  []model.TimePoint  `json:"time_points"`
	Records     []model.Record     `json:"records,omitempty"`
	Diagnostics []model.Diagnostic `json:"diagnostics,omitempty"`
}

// TimePoint returns the first time point with the given status.
func (r Record) TimePoint(status model.NodeStatus) (model.TimePoint, bool) {
	for _, p := range r.TimePoints {
		if p.Status == status {
			return p, true
		}
	}
	return model.TimePoint{}, false
}

func kindOf(state automaton.State, points int) Kind {
	switch {
	case state == automaton.Complete:
		return KindComplete
	case state == automaton.Aborted:
		return KindAborted
	case points == 0:
		return KindMissing
	default:
		return KindIncomplete
	}
}
