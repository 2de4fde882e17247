package adapter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mirkobrombin/go-stretch/v1/adapter"
	"github.com/mirkobrombin/go-stretch/v1/record"
)

type failingStore[T any] struct {
	err error
}

func (s failingStore[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	return zero, false, s.err
}

func (s failingStore[T]) Set(ctx context.Context, key string, value T) error { return s.err }

func (s failingStore[T]) Keys(ctx context.Context) ([]string, error) { return nil, s.err }

func TestResilientStoreFallsBack(t *testing.T) {
	ctx := context.Background()
	s := adapter.NewResilient[record.Record](failingStore[record.Record]{err: errors.New("down")}, nil)

	want := record.Record{State: record.StateRunning, ActiveInstanceID: "a"}
	if err := s.Set(ctx, "timer", want); err != nil {
		t.Fatalf("Set should suppress errors, got %v", err)
	}
	got, ok, err := s.Get(ctx, "timer")
	if err != nil || !ok || got != want {
		t.Fatalf("expected fallback value %+v, got %+v ok=%v err=%v", want, got, ok, err)
	}
	keys, err := s.Keys(ctx)
	if err != nil || len(keys) != 1 {
		t.Fatalf("expected fallback keys, got %v err=%v", keys, err)
	}
}

func TestResilientStorePassesThrough(t *testing.T) {
	ctx := context.Background()
	inner := adapter.NewInMemoryStore[record.Record]()
	s := adapter.NewResilient[record.Record](inner, nil)

	want := record.Record{State: record.StateExpired}
	if err := s.Set(ctx, "timer", want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, ok, _ := inner.Get(ctx, "timer"); !ok || got != want {
		t.Fatalf("inner store not written: %+v ok=%v", got, ok)
	}
}
