package hub

import (
	"context"
	"runtime"
	"sync"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/model"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/parser"
)

// batchChunk is the number of lines a worker takes at a time.
const batchChunk = 4096

// ParseAll parses lines on a pool of workers and returns results in input
// order. workers <= 0 uses GOMAXPROCS. Cancellation is checked between chunks.
func ParseAll(ctx context.Context, p parser.Parser, pc parser.Context, lines []model.RawLine, workers int) ([]parser.Result, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]parser.Result, len(lines))

	chunks := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for start := range chunks {
				end := min(start+batchChunk, len(lines))
				for j := start; j < end; j++ {
					c := pc
					c.Source = lines[j].Source
					results[j] = p.Parse(c, lines[j].Text)
				}
			}
		}()
	}

	var err error
feed:
	for start := 0; start < len(lines); start += batchChunk {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case chunks <- start:
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		}
	}
	close(chunks)
	wg.Wait()

	if err != nil {
		return nil, err
	}
	return results, nil
}

// Split separates results into records and diagnostics, both in input order.
func Split(results []parser.Result) ([]model.Record, []model.Diagnostic) {
	var (
		records     []model.Record
		diagnostics []model.Diagnostic
	)
	for _, res := range results {
		if res.Record != nil {
			records = append(records, *res.Record)
		}
		if res.Diagnostic != nil {
			diagnostics = append(diagnostics, *res.Diagnostic)
		}
	}
	return records, diagnostics
}
