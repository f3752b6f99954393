package hub

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/model"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/parser"
)

var pc = parser.Context{Owner: "nwp_xp", Repo: "nwpc_op"}

func newParser() parser.Parser {
	return parser.NewEcflowParser(parser.Options{})
}

func TestHubBroadcast(t *testing.T) {
	input := make(chan model.RawLine, 10)
	h := New(input, newParser(), pc, nil)

	sub1 := h.Subscribe()
	sub2 := h.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Start(ctx)

	input <- model.RawLine{Text: "LOG:[10:00:00 1.6.2018]  queued: /suite/task", Source: "ecflow.log"}

	for i, sub := range []<-chan parser.Result{sub1, sub2} {
		select {
		case res := <-sub:
			require.True(t, res.OK(), "sub%d", i+1)
			assert.Equal(t, "queued", res.Record.Command)
			assert.Equal(t, "ecflow.log", res.Record.Source)
			assert.Equal(t, "nwpc_op", res.Record.Repo)
		case <-time.After(1 * time.Second):
			t.Fatalf("sub%d: timed out", i+1)
		}
	}
}

func TestHubForwardsDiagnostics(t *testing.T) {
	input := make(chan model.RawLine, 10)
	h := New(input, newParser(), pc, nil)
	sub := h.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Start(ctx)

	input <- model.RawLine{Text: "garbage", Source: "ecflow.log"}

	select {
	case res := <-sub:
		assert.Nil(t, res.Record)
		require.NotNil(t, res.Diagnostic)
		assert.Equal(t, model.MalformedTimestamp, res.Diagnostic.Kind)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out")
	}
}

func TestHubSlowConsumer(t *testing.T) {
	input := make(chan model.RawLine, 10)
	h := New(input, newParser(), pc, nil)

	// Subscribe but never read, like a slow consumer.
	_ = h.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Start(ctx)

	for i := 0; i < subscriberBuffer+100; i++ {
		input <- model.RawLine{Text: "MSG:[10:00:00 1.6.2018] svr:check_pt", Source: "ecflow.log"}
	}

	time.Sleep(500 * time.Millisecond)

	assert.NotZero(t, h.Dropped())
}

func TestHubBlockingSubscriberLosesNothing(t *testing.T) {
	const total = subscriberBuffer + 500
	input := make(chan model.RawLine)
	h := New(input, newParser(), pc, nil)
	store := h.SubscribeBlocking()
	_ = h.Subscribe() // never read

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Start(ctx)

	go func() {
		for i := 0; i < total; i++ {
			input <- model.RawLine{Text: fmt.Sprintf("LOG:[10:00:00 1.6.2018]  queued: /suite/%d", i)}
		}
		close(input)
	}()

	// stall like a store in the middle of a long write
	time.Sleep(300 * time.Millisecond)

	var paths []string
	for res := range store {
		paths = append(paths, res.Record.NodePath)
	}
	require.Len(t, paths, total)
	for i, p := range paths {
		require.Equal(t, fmt.Sprintf("/suite/%d", i), p)
	}
	assert.NotZero(t, h.Dropped(), "the non-blocking subscriber still drops")
}

func TestHubBlockingSubscriberReleasedOnCancel(t *testing.T) {
	input := make(chan model.RawLine, subscriberBuffer+10)
	h := New(input, newParser(), pc, nil)
	_ = h.SubscribeBlocking() // never read

	for i := 0; i < subscriberBuffer+10; i++ {
		input <- model.RawLine{Text: "MSG:[10:00:00 1.6.2018] svr:check_pt"}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Start(ctx)
		close(done)
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub stayed blocked after cancel")
	}
	assert.Zero(t, h.Dropped())
}

func TestHubClosesSubscribersOnInputClose(t *testing.T) {
	input := make(chan model.RawLine)
	h := New(input, newParser(), pc, nil)
	sub := h.Subscribe()

	done := make(chan struct{})
	go func() {
		h.Start(context.Background())
		close(done)
	}()
	close(input)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	_, ok := <-sub
	assert.False(t, ok)
}

func TestHubUnsubscribe(t *testing.T) {
	h := New(make(chan model.RawLine), newParser(), pc, nil)
	sub := h.Subscribe()
	keep := h.Subscribe()

	h.Unsubscribe(sub)
	_, ok := <-sub
	assert.False(t, ok)

	h.broadcast(context.Background(), parser.Result{Diagnostic: &model.Diagnostic{Kind: model.UnrecognizedMarker}})
	assert.Len(t, keep, 1)
	assert.Zero(t, h.Dropped())
}

func TestParseAllKeepsOrder(t *testing.T) {
	lines := make([]model.RawLine, 3*batchChunk+7)
	for i := range lines {
		if i%10 == 0 {
			lines[i] = model.RawLine{Text: fmt.Sprintf("bad line %d", i), Source: "a.log"}
			continue
		}
		lines[i] = model.RawLine{Text: fmt.Sprintf("LOG:[10:00:00 1.6.2018]  queued: /suite/%d", i), Source: "a.log"}
	}

	results, err := ParseAll(context.Background(), newParser(), pc, lines, 4)
	require.NoError(t, err)
	require.Len(t, results, len(lines))

	for i, res := range results {
		if i%10 == 0 {
			require.NotNil(t, res.Diagnostic)
			assert.Equal(t, lines[i].Text, res.Diagnostic.Line)
			continue
		}
		require.True(t, res.OK())
		assert.Equal(t, fmt.Sprintf("/suite/%d", i), res.Record.NodePath)
		assert.Equal(t, lines[i].Text, res.Record.Raw)
	}

	records, diagnostics := Split(results)
	assert.Len(t, diagnostics, (len(lines)+9)/10)
	assert.Len(t, records, len(lines)-len(diagnostics))
}

func TestParseAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lines := make([]model.RawLine, 10*batchChunk)
	_, err := ParseAll(ctx, newParser(), pc, lines, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
