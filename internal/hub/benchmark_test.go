package hub

import (
	"context"
	"fmt"
	"testing"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/model"
)

// BenchmarkHubThroughput measures end-to-end parse + broadcast throughput.
func BenchmarkHubThroughput(b *testing.B) {
	input := make(chan model.RawLine, 1024)
	h := New(input, newParser(), pc, nil)
	sub := h.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Start(ctx)

	// Drain subscriber in background.
	go func() {
		for range sub {
		}
	}()

	line := model.RawLine{Text: "LOG:[10:00:00 1.6.2018]  complete: /suite/fam/task", Source: "bench.log"}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		input <- line
	}
}

// BenchmarkParseAll measures parallel batch parsing.
func BenchmarkParseAll(b *testing.B) {
	lines := make([]model.RawLine, 100000)
	for i := range lines {
		lines[i] = model.RawLine{Text: fmt.Sprintf("LOG:[10:00:00 1.6.2018]  complete: /suite/%d", i), Source: "bench.log"}
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = ParseAll(context.Background(), newParser(), pc, lines, 0)
	}
}
