package adapter

import (
	"context"
	"log/slog"

	"github.com/mirkobrombin/go-stretch/v1/metrics"
)

// ResilientStore wraps a Store and falls back to a process-local in-memory
// copy when the primary fails. Errors are logged instead of returned, so an
// unavailable backend degrades the timer to a per-process one rather than
// stopping it.
type ResilientStore[T any] struct {
	inner    Store[T]
	fallback *InMemoryStore[T]
	logger   *slog.Logger
}

// NewResilient creates a new ResilientStore wrapper.
func NewResilient[T any](inner Store[T], logger *slog.Logger) *ResilientStore[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResilientStore[T]{inner: inner, fallback: NewInMemoryStore[T](), logger: logger}
}

// Get implements Store.Get.
// If the inner store fails, it logs the error and answers from the fallback.
func (r *ResilientStore[T]) Get(ctx context.Context, key string) (T, bool, error) {
	val, ok, err := r.inner.Get(ctx, key)
	if err != nil {
		metrics.StoreErrorCounter.Inc()
		r.logger.Warn("stretch: store get failed (fallback active)", "key", key, "error", err)
		return r.fallback.Get(ctx, key)
	}
	if ok {
		_ = r.fallback.Set(ctx, key, val)
	}
	return val, ok, nil
}

// Set implements Store.Set.
// The value always lands in the fallback; inner failures are logged.
func (r *ResilientStore[T]) Set(ctx context.Context, key string, value T) error {
	_ = r.fallback.Set(ctx, key, value)
	if err := r.inner.Set(ctx, key, value); err != nil {
		metrics.StoreErrorCounter.Inc()
		r.logger.Warn("stretch: store set failed (fallback active)", "key", key, "error", err)
	}
	return nil
}

// Keys implements Store.Keys.
func (r *ResilientStore[T]) Keys(ctx context.Context) ([]string, error) {
	keys, err := r.inner.Keys(ctx)
	if err != nil {
		metrics.StoreErrorCounter.Inc()
		r.logger.Warn("stretch: store keys failed (fallback active)", "error", err)
		return r.fallback.Keys(ctx)
	}
	return keys, nil
}
