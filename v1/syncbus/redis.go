package syncbus

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"sync"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	stretcherrors "github.com/mirkobrombin/go-stretch/v1/errors"
)

const (
	redisBusTimeout    = 5 * time.Second
	redisChannelPrefix = "stretch:"
)

var tracer = otel.Tracer("github.com/mirkobrombin/go-stretch/v1/syncbus")

type redisSubscription struct {
	pubsub *redis.PubSub
	chans  []chan Event
}

// RedisBus implements Bus using Redis pub/sub. Each key maps to the channel
// "stretch:<key>".
type RedisBus struct {
	client    *redis.Client
	mu        sync.Mutex
	subs      map[string]*redisSubscription
	published atomic.Uint64
	delivered atomic.Uint64
}

// NewRedisBus returns a new RedisBus using the provided Redis client.
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client, subs: make(map[string]*redisSubscription)}
}

// Publish implements Bus.Publish.
func (b *RedisBus) Publish(ctx context.Context, key, origin string) error {
	ctx, span := tracer.Start(ctx, "syncbus.redis.publish", trace.WithSpanKind(trace.SpanKindProducer))
	span.SetAttributes(attribute.String("stretch.key", key))
	defer span.End()

	data, err := json.Marshal(Event{Key: key, Origin: origin})
	if err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(ctx, redisBusTimeout)
	defer cancel()
	if err := b.client.Publish(cctx, redisChannelPrefix+key, data).Err(); err != nil {
		span.RecordError(err)
		return mapBusErr(err)
	}
	b.published.Add(1)
	return nil
}

// Subscribe implements Bus.Subscribe.
func (b *RedisBus) Subscribe(ctx context.Context, key string) (<-chan Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, mapBusErr(err)
	}
	ch := make(chan Event, 1)

	b.mu.Lock()
	if sub, ok := b.subs[key]; ok {
		sub.chans = append(sub.chans, ch)
		b.mu.Unlock()
	} else {
		b.mu.Unlock()
		cctx, cancel := context.WithTimeout(ctx, redisBusTimeout)
		ps := b.client.Subscribe(cctx, redisChannelPrefix+key)
		_, err := ps.Receive(cctx)
		cancel()
		if err != nil {
			_ = ps.Close()
			return nil, mapBusErr(err)
		}
		b.mu.Lock()
		if existing, ok := b.subs[key]; ok {
			existing.chans = append(existing.chans, ch)
			b.mu.Unlock()
			_ = ps.Close()
		} else {
			sub := &redisSubscription{pubsub: ps, chans: []chan Event{ch}}
			b.subs[key] = sub
			b.mu.Unlock()
			go b.dispatch(key, sub)
		}
	}

	go func() {
		<-ctx.Done()
		_ = b.Unsubscribe(context.Background(), key, ch)
	}()
	return ch, nil
}

func (b *RedisBus) dispatch(key string, sub *redisSubscription) {
	for msg := range sub.pubsub.Channel() {
		var evt Event
		if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
			continue
		}
		b.mu.Lock()
		if b.subs[key] == sub {
			deliver(sub.chans, evt, &b.delivered)
		}
		b.mu.Unlock()
	}
}

// Unsubscribe implements Bus.Unsubscribe.
func (b *RedisBus) Unsubscribe(ctx context.Context, key string, ch <-chan Event) error {
	b.mu.Lock()
	sub := b.subs[key]
	if sub == nil {
		b.mu.Unlock()
		return nil
	}
	chans, ok := removeChan(sub.chans, ch)
	if !ok {
		b.mu.Unlock()
		return nil
	}
	sub.chans = chans
	if len(sub.chans) > 0 {
		b.mu.Unlock()
		return nil
	}
	delete(b.subs, key)
	b.mu.Unlock()
	if err := sub.pubsub.Close(); err != nil {
		return mapBusErr(err)
	}
	return nil
}

// Metrics returns the bus counters.
func (b *RedisBus) Metrics() Metrics {
	return Metrics{Published: b.published.Load(), Delivered: b.delivered.Load()}
}

func mapBusErr(err error) error {
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return stretcherrors.ErrTimeout
	}
	if stdErrors.Is(err, redis.ErrClosed) {
		return stretcherrors.ErrConnectionClosed
	}
	return err
}
