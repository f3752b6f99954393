// Package sink stores and publishes parsed records outside the process.
package sink

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/filter"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/model"
)

// Sink receives batches of parsed records.
type Sink interface {
	Write(ctx context.Context, records []model.Record) error
	Close() error
}

// Source returns stored records whose timestamp falls in a window, oldest first.
type Source interface {
	Records(ctx context.Context, w filter.Window) ([]model.Record, error)
}

// Multi writes every batch to all sinks, stopping at the first error.
type Multi []Sink

func (m Multi) Write(ctx context.Context, records []model.Record) error {
	for _, s := range m {
		if err := s.Write(ctx, records); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// Memory keeps records in process. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	records []model.Record
	limit   int
}

// NewMemory returns an in-memory store keeping at most limit records
// (0 means unbounded); the oldest written records are evicted first.
func NewMemory(limit int) *Memory {
	return &Memory{limit: limit}
}

func (m *Memory) Write(_ context.Context, records []model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	if m.limit > 0 && len(m.records) > m.limit {
		m.records = append([]model.Record(nil), m.records[len(m.records)-m.limit:]...)
	}
	return nil
}

func (m *Memory) Records(_ context.Context, w filter.Window) ([]model.Record, error) {
	m.mu.RLock()
	out := filter.Apply(m.records, filter.InWindow(w))
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *Memory) Close() error { return nil }
