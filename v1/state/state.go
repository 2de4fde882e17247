// Package state exposes the single shared timer record kept in a key-value
// store. Every write is a field-level merge onto the record read just before
// it; there is no version check, so concurrent writers resolve to last writer
// wins per field.
package state

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mirkobrombin/go-stretch/v1/adapter"
	"github.com/mirkobrombin/go-stretch/v1/clock"
	"github.com/mirkobrombin/go-stretch/v1/record"
	"github.com/mirkobrombin/go-stretch/v1/syncbus"
)

// DefaultKey is the store key holding the timer record.
const DefaultKey = "stretch-timer-state"

var tracer = otel.Tracer("github.com/mirkobrombin/go-stretch/v1/state")

// Store is the narrow read/modify/write surface over the shared record.
// Every value it returns may already be stale.
type Store interface {
	// Load returns the current record, or the default record if none was
	// written yet.
	Load(ctx context.Context) (record.Record, error)
	// Update merges p onto the current record, writes it back and returns
	// the merged value.
	Update(ctx context.Context, p record.Patch) (record.Record, error)
}

// KV implements Store on top of an adapter.Store.
type KV struct {
	kv     adapter.Store[record.Record]
	key    string
	clock  clock.Clock
	bus    syncbus.Bus
	origin string
	logger *slog.Logger
}

// Option configures a KV.
type Option func(*KV)

// WithKey overrides the store key.
func WithKey(key string) Option {
	return func(s *KV) {
		if key != "" {
			s.key = key
		}
	}
}

// WithClock sets the clock used to stamp writes.
func WithClock(c clock.Clock) Option {
	return func(s *KV) {
		s.clock = c
	}
}

// WithBus announces every successful write on bus, tagged with origin.
func WithBus(bus syncbus.Bus, origin string) Option {
	return func(s *KV) {
		s.bus = bus
		s.origin = origin
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *KV) {
		s.logger = l
	}
}

// New returns a KV storing the record in kv.
func New(kv adapter.Store[record.Record], opts ...Option) *KV {
	s := &KV{kv: kv, key: DefaultKey, clock: clock.Real{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the store key in use.
func (s *KV) Key() string { return s.key }

// Load implements Store.Load.
func (s *KV) Load(ctx context.Context) (record.Record, error) {
	ctx, span := tracer.Start(ctx, "State.Load")
	defer span.End()
	rec, err := s.load(ctx)
	if err != nil {
		span.RecordError(err)
		return record.Record{}, err
	}
	span.SetAttributes(attribute.String("stretch.state", string(rec.State)))
	return rec, nil
}

func (s *KV) load(ctx context.Context) (record.Record, error) {
	rec, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return record.Record{}, fmt.Errorf("state: load %q: %w", s.key, err)
	}
	if !ok {
		return record.Default(s.clock.Now()), nil
	}
	return rec.Normalize(), nil
}

// Update implements Store.Update.
func (s *KV) Update(ctx context.Context, p record.Patch) (record.Record, error) {
	ctx, span := tracer.Start(ctx, "State.Update")
	defer span.End()
	cur, err := s.load(ctx)
	if err != nil {
		span.RecordError(err)
		return record.Record{}, err
	}
	next := p.Apply(cur, s.clock.Now())
	if err := s.kv.Set(ctx, s.key, next); err != nil {
		span.RecordError(err)
		return record.Record{}, fmt.Errorf("state: update %q: %w", s.key, err)
	}
	span.SetAttributes(attribute.String("stretch.state", string(next.State)))
	if s.bus != nil {
		if err := s.bus.Publish(ctx, s.key, s.origin); err != nil {
			s.logger.Warn("stretch: change notification failed", "key", s.key, "error", err)
		}
	}
	return next, nil
}

// Watch returns a channel that receives a value whenever another instance
// writes the record. Without a bus it returns a nil channel, which never
// fires. The channel is closed when ctx is done.
func (s *KV) Watch(ctx context.Context) (<-chan struct{}, error) {
	if s.bus == nil {
		return nil, nil
	}
	events, err := s.bus.Subscribe(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("state: watch %q: %w", s.key, err)
	}
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for evt := range events {
			if evt.Origin == s.origin {
				continue
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out, nil
}
