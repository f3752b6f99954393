package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/filter"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/model"
)

const (
	recordPrefix  = "record:"
	keyTimeLayout = "20060102T150405"
)

// BadgerStore keeps records in an embedded Badger database, keyed by
// timestamp so window queries are range scans.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(filepath.Clean(path))
	opts.Logger = nil
	opts = opts.WithValueLogFileSize(1 << 26)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	seq, err := db.GetSequence([]byte("seq:record"), 1000)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("record sequence: %w", err)
	}
	return &BadgerStore{db: db, seq: seq}, nil
}

func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}

func timeKey(t time.Time) string {
	return recordPrefix + t.UTC().Format(keyTimeLayout) + ":"
}

func recordKey(t time.Time, n uint64) []byte {
	return []byte(fmt.Sprintf("%s%016d", timeKey(t), n))
}

// Write stores records in one batch. Records with equal timestamps keep their
// write order.
func (s *BadgerStore) Write(ctx context.Context, records []model.Record) error {
	wb := s.db.NewWriteBatch()
	if err := s.fill(ctx, wb, records); err != nil {
		wb.Cancel()
		return err
	}
	return wb.Flush()
}

func (s *BadgerStore) fill(ctx context.Context, wb *badger.WriteBatch, records []model.Record) error {
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.seq.Next()
		if err != nil {
			return err
		}
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if err := wb.Set(recordKey(r.Timestamp, n), data); err != nil {
			return err
		}
	}
	return nil
}

func (s *BadgerStore) Records(ctx context.Context, w filter.Window) ([]model.Record, error) {
	var out []model.Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(recordPrefix)
		start := prefix
		if !w.Begin.IsZero() {
			start = []byte(timeKey(w.Begin))
		}
		var end string
		if !w.End.IsZero() {
			end = timeKey(w.End)
		}

		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			if end != "" && string(item.Key()) >= end {
				break
			}
			var r model.Record
			if err := item.Value(func(v []byte) error {
				return json.Unmarshal(v, &r)
			}); err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
