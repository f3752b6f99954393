// Package presenter summarises situations into timing reports.
package presenter

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/automaton"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/model"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/situation"
)

// DefaultTrimRatio is the share cut from each end for the trimmed mean.
const DefaultTrimRatio = 0.25

// DayPoint is the offset of the target time point from midnight of its day.
type DayPoint struct {
	Date   time.Time     `json:"date"`
	Offset time.Duration `json:"offset"`
}

// Skip records a day left out of the report.
type Skip struct {
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
}

// Report is the output of TimePoint.Present.
type Report struct {
	Status    model.NodeStatus `json:"status"`
	State     automaton.State  `json:"state"`
	Points    []DayPoint       `json:"points"`
	Skipped   []Skip           `json:"skipped,omitempty"`
	Mean      time.Duration    `json:"mean"`
	TrimMean  time.Duration    `json:"trim_mean"`
	TrimRatio float64          `json:"trim_ratio"`
}

// TimePoint reports when a node reached Status on the days it finished in
// State, e.g. the complete time of every successfully completed day.
type TimePoint struct {
	Status    model.NodeStatus
	State     automaton.State
	TrimRatio float64 // 0 disables trimming, negative means DefaultTrimRatio
	Log       *zap.Logger
}

// Present builds the report. Days in another state, or without the target
// time point, are skipped.
func (p TimePoint) Present(situations []situation.Record) Report {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	ratio := p.TrimRatio
	if ratio < 0 {
		ratio = DefaultTrimRatio
	}

	r := Report{Status: p.Status, State: p.State, TrimRatio: ratio}
	offsets := make([]time.Duration, 0, len(situations))
	for _, s := range situations {
		date := s.Date.Format(time.DateOnly)
		if s.State != p.State {
			log.Warn("skip: state not matched", zap.String("date", date), zap.String("state", string(s.State)))
			r.Skipped = append(r.Skipped, Skip{Date: s.Date, Reason: "state is " + string(s.State)})
			continue
		}
		point, ok := s.TimePoint(p.Status)
		if !ok {
			log.Warn("skip: no time point", zap.String("date", date), zap.String("status", string(p.Status)))
			r.Skipped = append(r.Skipped, Skip{Date: s.Date, Reason: "no " + string(p.Status) + " time point"})
			continue
		}
		offset := point.Time.Sub(s.Date)
		log.Info("time point", zap.String("date", date), zap.Duration("offset", offset))
		r.Points = append(r.Points, DayPoint{Date: s.Date, Offset: offset})
		offsets = append(offsets, offset)
	}

	r.Mean = Mean(offsets)
	r.TrimMean = TrimMean(offsets, ratio)
	return r
}

// Mean returns the arithmetic mean, or 0 for no values.
func Mean(values []time.Duration) time.Duration {
	if len(values) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range values {
		sum += v
	}
	return sum / time.Duration(len(values))
}

// TrimMean cuts floor(ratio*n) values from both ends of the sorted sample and
// returns the mean of the rest.
func TrimMean(values []time.Duration, ratio float64) time.Duration {
	n := len(values)
	cut := int(ratio * float64(n))
	if n == 0 || cut*2 >= n {
		return Mean(values)
	}
	sorted := append([]time.Duration(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return Mean(sorted[cut : n-cut])
}
