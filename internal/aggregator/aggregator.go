package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/parser"
)

// Stats holds a point-in-time snapshot of aggregated parse metrics.
type Stats struct {
	Uptime           string           `json:"uptime"`
	TotalLines       int64            `json:"total_lines"`
	EPS              float64          `json:"eps"`
	CommandCounts    map[string]int64 `json:"command_counts"`
	DiagnosticCounts map[string]int64 `json:"diagnostic_counts"`
	DroppedLines     int64            `json:"dropped_lines"`
	FilesWatched     int              `json:"files_watched"`
}

// Aggregator subscribes to the Hub and computes time-windowed metrics.
type Aggregator struct {
	mu               sync.RWMutex
	startTime        time.Time
	totalLines       int64
	commandCounts    map[string]int64
	diagnosticCounts map[string]int64
	window           []time.Time // timestamps for EPS calculation (last 5 seconds)
	dropped          func() int64
	fileCount        func() int
	metrics          *Metrics
	results          <-chan parser.Result
}

// New creates an Aggregator that reads from the given Hub subscriber channel.
// droppedFn and fileCountFn provide live values from Hub and Watcher
// respectively. metrics may be nil.
func New(results <-chan parser.Result, droppedFn func() int64, fileCountFn func() int, metrics *Metrics) *Aggregator {
	return &Aggregator{
		startTime:        time.Now(),
		commandCounts:    make(map[string]int64),
		diagnosticCounts: make(map[string]int64),
		dropped:          droppedFn,
		fileCount:        fileCountFn,
		metrics:          metrics,
		results:          results,
	}
}

// Snapshot returns the current metrics.
func (a *Aggregator) Snapshot() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	now := time.Now()
	cutoff := now.Add(-5 * time.Second)
	var recent int
	for _, t := range a.window {
		if t.After(cutoff) {
			recent++
		}
	}

	return Stats{
		Uptime:           time.Since(a.startTime).Truncate(time.Second).String(),
		TotalLines:       a.totalLines,
		EPS:              float64(recent) / 5.0,
		CommandCounts:    copyCounts(a.commandCounts),
		DiagnosticCounts: copyCounts(a.diagnosticCounts),
		DroppedLines:     a.dropped(),
		FilesWatched:     a.fileCount(),
	}
}

// Start begins consuming results and updating metrics. Blocks until context is
// cancelled or the channel is closed.
func (a *Aggregator) Start(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-a.results:
			if !ok {
				return
			}
			a.Record(res)
		case <-ticker.C:
			a.prune()
		}
	}
}

// Record adds one parse result to the metrics.
func (a *Aggregator) Record(res parser.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalLines++
	a.window = append(a.window, time.Now())
	if res.Record != nil {
		a.commandCounts[string(res.Record.CommandType)]++
	}
	if res.Diagnostic != nil {
		a.diagnosticCounts[string(res.Diagnostic.Kind)]++
	}
	a.metrics.observe(res)
}

// prune removes timestamps older than 5 seconds from the sliding window.
func (a *Aggregator) prune() {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := time.Now().Add(-5 * time.Second)
	i := 0
	for _, t := range a.window {
		if t.After(cutoff) {
			a.window[i] = t
			i++
		}
	}
	a.window = a.window[:i]
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
