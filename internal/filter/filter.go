// Package filter restricts record streams to a node or a date window.
package filter

import (
	"time"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/model"
)

// Window is the half-open time range [Begin, End).
type Window struct {
	Begin time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window. A zero Begin or End
// leaves that side unbounded.
func (w Window) Contains(t time.Time) bool {
	if !w.Begin.IsZero() && t.Before(w.Begin) {
		return false
	}
	if !w.End.IsZero() && !t.Before(w.End) {
		return false
	}
	return true
}

// Day returns the window covering the calendar day of t.
func Day(t time.Time) Window {
	d := model.DayOf(t)
	return Window{Begin: d, End: d.AddDate(0, 0, 1)}
}

// CollectionWindow is the window logs are read from for situations computed
// over [begin, end): it reaches back one day so status sequences running
// across midnight into begin keep their earlier events.
func CollectionWindow(begin, end time.Time) Window {
	w := Window{End: end}
	if !begin.IsZero() {
		w.Begin = model.DayOf(begin).AddDate(0, 0, -1)
	}
	if !end.IsZero() {
		w.End = model.DayOf(end)
	}
	return w
}

// Predicate selects records.
type Predicate func(r model.Record) bool

// InWindow keeps records whose timestamp falls inside w.
func InWindow(w Window) Predicate {
	return func(r model.Record) bool { return w.Contains(r.Timestamp) }
}

// ForNode keeps records of one node path.
func ForNode(path string) Predicate {
	return func(r model.Record) bool { return r.NodePath == path }
}

// StatusOnly keeps status records.
func StatusOnly() Predicate {
	return func(r model.Record) bool { return r.CommandType == model.CommandStatus }
}

// Match reports whether r satisfies every predicate.
func Match(r model.Record, preds ...Predicate) bool {
	for _, p := range preds {
		if !p(r) {
			return false
		}
	}
	return true
}

// Apply returns the records matching every predicate, in input order.
func Apply(records []model.Record, preds ...Predicate) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if Match(r, preds...) {
			out = append(out, r)
		}
	}
	return out
}
