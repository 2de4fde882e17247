// Package syncbus propagates "the shared record changed" notifications
// between instances. Notifications carry no state: receivers always re-read
// the record, so a lost or duplicated event only delays or repeats a refresh.
package syncbus

import (
	"context"
	"sync"
	"sync/atomic"
)

// Event announces a write to key performed by the instance Origin.
type Event struct {
	Key    string `json:"k"`
	Origin string `json:"o"`
}

// Bus provides a keyed pub/sub mechanism used to tell other instances that
// the shared record was written.
type Bus interface {
	Publish(ctx context.Context, key, origin string) error
	Subscribe(ctx context.Context, key string) (<-chan Event, error)
	Unsubscribe(ctx context.Context, key string, ch <-chan Event) error
}

// Metrics reports bus activity counters.
type Metrics struct {
	Published uint64
	Delivered uint64
}

// InMemoryBus is a process-local implementation of Bus mainly for testing.
type InMemoryBus struct {
	mu        sync.Mutex
	subs      map[string][]chan Event
	published atomic.Uint64
	delivered atomic.Uint64
}

// NewInMemoryBus returns a new InMemoryBus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{subs: make(map[string][]chan Event)}
}

// Publish implements Bus.Publish. Slow subscribers miss events instead of
// blocking the publisher.
func (b *InMemoryBus) Publish(ctx context.Context, key, origin string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.published.Add(1)
	b.mu.Lock()
	deliver(b.subs[key], Event{Key: key, Origin: origin}, &b.delivered)
	b.mu.Unlock()
	return nil
}

// Subscribe implements Bus.Subscribe. The subscription ends when ctx is done.
func (b *InMemoryBus) Subscribe(ctx context.Context, key string) (<-chan Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := make(chan Event, 1)
	b.mu.Lock()
	b.subs[key] = append(b.subs[key], ch)
	b.mu.Unlock()
	go func() {
		<-ctx.Done()
		_ = b.Unsubscribe(context.Background(), key, ch)
	}()
	return ch, nil
}

// Unsubscribe implements Bus.Unsubscribe.
func (b *InMemoryBus) Unsubscribe(ctx context.Context, key string, ch <-chan Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := removeChan(b.subs[key], ch)
	if !ok {
		return nil
	}
	if len(subs) == 0 {
		delete(b.subs, key)
	} else {
		b.subs[key] = subs
	}
	return nil
}

// Metrics returns the bus counters.
func (b *InMemoryBus) Metrics() Metrics {
	return Metrics{Published: b.published.Load(), Delivered: b.delivered.Load()}
}

// deliver must be called with the owning bus mutex held so no channel is
// closed mid-send.
func deliver(chans []chan Event, evt Event, delivered *atomic.Uint64) {
	for _, ch := range chans {
		select {
		case ch <- evt:
			delivered.Add(1)
		default:
		}
	}
}

// removeChan drops ch from subs and closes it. It reports whether ch was found.
func removeChan(subs []chan Event, ch <-chan Event) ([]chan Event, bool) {
	for i, c := range subs {
		if c == ch {
			subs[i] = subs[len(subs)-1]
			subs = subs[:len(subs)-1]
			close(c)
			return subs, true
		}
	}
	return subs, false
}
