package situation

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/automaton"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/filter"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/model"
)

// ErrInvalidRange is returned when the end date is before the start date.
var ErrInvalidRange = errors.New("situation: end date before start date")

// Calculator drives one automaton per (node, day).
type Calculator struct {
	stop map[automaton.State]bool
	log  *zap.Logger
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithLogger sets the logger used for progress messages.
func WithLogger(l *zap.Logger) Option {
	return func(c *Calculator) { c.log = l }
}

// NewCalculator returns a Calculator that stops feeding a day's events once
// the automaton reaches one of stopStates. An empty list uses
// automaton.DefaultStopStates.
func NewCalculator(stopStates []automaton.State, opts ...Option) *Calculator {
	if len(stopStates) == 0 {
		stopStates = automaton.DefaultStopStates
	}
	c := &Calculator{
		stop: make(map[automaton.State]bool, len(stopStates)),
		log:  zap.NewNop(),
	}
	for _, s := range stopStates {
		c.stop[s] = true
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetSituations returns one Record per calendar day in [start, end) for the
// node at nodePath. Only status records of that node are considered. ctx is
// checked between days.
func (c *Calculator) GetSituations(ctx context.Context, records []model.Record, nodePath string, start, end time.Time) ([]Record, error) {
	start, end = model.DayOf(start), model.DayOf(end)
	if end.Before(start) {
		return nil, ErrInvalidRange
	}

	c.log.Info("finding status records", zap.String("node", nodePath))
	selected := filter.Apply(records, filter.ForNode(nodePath), filter.StatusOnly())
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Timestamp.Before(selected[j].Timestamp)
	})

	c.log.Info("calculating node situations", zap.String("node", nodePath), zap.Int("records", len(selected)))
	var situations []Record
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w := filter.Day(day)
		lo := sort.Search(len(selected), func(i int) bool { return !selected[i].Timestamp.Before(w.Begin) })
		hi := sort.Search(len(selected), func(i int) bool { return !selected[i].Timestamp.Before(w.End) })

		s := c.calculateDay(nodePath, day, append([]model.Record(nil), selected[lo:hi]...))
		c.log.Debug("situation",
			zap.String("node", nodePath),
			zap.String("date", day.Format(time.DateOnly)),
			zap.String("state", string(s.State)),
			zap.Int("records", len(s.Records)),
		)
		situations = append(situations, s)
	}
	c.log.Info("calculating node situations done", zap.String("node", nodePath), zap.Int("days", len(situations)))
	return situations, nil
}

func (c *Calculator) calculateDay(nodePath string, day time.Time, records []model.Record) Record {
	a := automaton.New(nodePath + "@" + day.Format(time.DateOnly))
	for _, r := range records {
		ev, ok := model.NewStatusEvent(r)
		if !ok {
			continue
		}
		a.Trigger(ev.Status, ev.Time)
		if c.stop[a.State()] {
			break
		}
	}

	points := a.TimePoints()
	return Record{
		Date:        day,
		State:       a.State(),
		Kind:        kindOf(a.State(), len(points)),
		TimePoints:  points,
		Records:     records,
		Diagnostics: a.Diagnostics(),
	}
}
