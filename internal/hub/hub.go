package hub

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/model"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/parser"
)

const subscriberBuffer = 1024

// Hub receives raw lines, parses them, and broadcasts parse results to all
// subscribers. Diagnostics travel with the results, so every subscriber sees
// them in line order.
type Hub struct {
	parser      parser.Parser
	pc          parser.Context
	input       <-chan model.RawLine
	log         *zap.Logger
	mu          sync.RWMutex
	subscribers []subscriber
	dropped     atomic.Int64
}

// subscriber is one consumer. A blocking subscriber is never dropped from:
// a full buffer stalls the hub until it drains or the hub stops.
type subscriber struct {
	ch    chan parser.Result
	block bool
}

// New creates a Hub that reads from the input channel and parses with the
// given parser. pc supplies owner and repo; the source is taken from each line.
func New(input <-chan model.RawLine, p parser.Parser, pc parser.Context, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		parser: p,
		pc:     pc,
		input:  input,
		log:    log,
	}
}

// Subscribe returns a buffered channel that will receive parse results.
// Multiple consumers can subscribe; each gets a copy of every result.
// Results are dropped for this subscriber while its buffer is full.
func (h *Hub) Subscribe() <-chan parser.Result {
	return h.subscribe(false)
}

// SubscribeBlocking is like Subscribe but never drops: a full buffer holds
// back the hub, and through it the tailer. Use it for consumers that must
// see every result, such as record stores.
func (h *Hub) SubscribeBlocking() <-chan parser.Result {
	return h.subscribe(true)
}

func (h *Hub) subscribe(block bool) <-chan parser.Result {
	ch := make(chan parser.Result, subscriberBuffer)
	h.mu.Lock()
	h.subscribers = append(h.subscribers, subscriber{ch: ch, block: block})
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (h *Hub) Unsubscribe(sub <-chan parser.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, s := range h.subscribers {
		if s.ch == sub {
			close(s.ch)
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			return
		}
	}
}

// Dropped returns the total number of results dropped due to slow consumers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Start begins reading from the input channel, parsing, and broadcasting.
// Blocks until the context is cancelled or the input channel is closed.
func (h *Hub) Start(ctx context.Context) {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-h.input:
			if !ok {
				return
			}
			pc := h.pc
			pc.Source = raw.Source
			h.broadcast(ctx, h.parser.Parse(pc, raw.Text))
		}
	}
}

// broadcast sends a result to all subscribers. A full non-blocking
// subscriber loses the result; a full blocking one is waited for until ctx
// is done.
func (h *Hub) broadcast(ctx context.Context, res parser.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.subscribers {
		if s.block {
			select {
			case s.ch <- res:
			case <-ctx.Done():
			}
			continue
		}
		select {
		case s.ch <- res:
		default:
			total := h.dropped.Add(1)
			h.log.Warn("hub: dropped result for slow consumer", zap.Int64("total_dropped", total))
		}
	}
}

// closeAll closes all subscriber channels.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subscribers {
		close(s.ch)
	}
	h.subscribers = nil
}
