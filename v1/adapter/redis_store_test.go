package adapter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-stretch/v1/adapter"
	stretcherrors "github.com/mirkobrombin/go-stretch/v1/errors"
	"github.com/mirkobrombin/go-stretch/v1/record"
)

// newRedisStoreWithServer returns a Redis-backed store along with the
// underlying miniredis server and client for tests that need to manipulate
// the server state.
func newRedisStoreWithServer[T any](t *testing.T, opts ...adapter.RedisOption) (*adapter.RedisStore[T], context.Context, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return adapter.NewRedisStore[T](client, opts...), ctx, mr, client
}

func TestRedisStoreGetSetKeys(t *testing.T) {
	s, ctx, _, _ := newRedisStoreWithServer[record.Record](t)
	want := record.Record{State: record.StateRunning, StartTime: 10, TargetDurationMs: 60_000, ActiveInstanceID: "a"}
	if err := s.Set(ctx, "timer", want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok, err := s.Get(ctx, "timer"); err != nil || !ok || v != want {
		t.Fatalf("Get: expected %+v, got %+v err %v", want, v, err)
	}
	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "timer" {
		t.Fatalf("Keys: expected [timer], got %v", keys)
	}
}

func TestRedisStoreMissingKey(t *testing.T) {
	s, ctx, _, _ := newRedisStoreWithServer[record.Record](t)
	if _, ok, err := s.Get(ctx, "absent"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestRedisStoreSharedBetweenClients(t *testing.T) {
	s1, ctx, mr, _ := newRedisStoreWithServer[record.Record](t, adapter.WithRedisCodec(adapter.CBORCodec{}))
	client2 := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client2.Close() })
	s2 := adapter.NewRedisStore[record.Record](client2, adapter.WithRedisCodec(adapter.CBORCodec{}))

	if err := s1.Set(ctx, "timer", record.Record{State: record.StateExpired, ActiveInstanceID: "one"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := s2.Get(ctx, "timer")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if v.State != record.StateExpired || v.ActiveInstanceID != "one" {
		t.Fatalf("unexpected record %+v", v)
	}
}

func TestRedisStoreSetMarshalError(t *testing.T) {
	s, ctx, _, _ := newRedisStoreWithServer[chan int](t)
	if err := s.Set(ctx, "foo", make(chan int)); err == nil {
		t.Fatalf("expected marshal error")
	}
}

func TestRedisStoreGetUnmarshalError(t *testing.T) {
	s, ctx, _, client := newRedisStoreWithServer[record.Record](t)
	if err := client.Set(ctx, "timer", "invalid", 0).Err(); err != nil {
		t.Fatalf("client.Set: %v", err)
	}
	if _, _, err := s.Get(ctx, "timer"); err == nil {
		t.Fatalf("expected unmarshal error")
	}
}

func TestRedisStoreKeysScanError(t *testing.T) {
	s, ctx, mr, _ := newRedisStoreWithServer[record.Record](t)
	mr.Close()
	if _, err := s.Keys(ctx); err == nil {
		t.Fatalf("expected scan error")
	}
}

func TestRedisStoreSentinelErrors(t *testing.T) {
	t.Run("connection closed", func(t *testing.T) {
		s, ctx, _, client := newRedisStoreWithServer[string](t)
		_ = s.Set(ctx, "foo", "bar")
		_ = client.Close()
		if _, _, err := s.Get(ctx, "foo"); !errors.Is(err, stretcherrors.ErrConnectionClosed) {
			t.Fatalf("expected connection closed, got %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		s, ctx, _, _ := newRedisStoreWithServer[string](t)
		tCtx, cancel := context.WithTimeout(ctx, time.Nanosecond)
		defer cancel()
		time.Sleep(time.Millisecond)
		if _, _, err := s.Get(tCtx, "foo"); !errors.Is(err, stretcherrors.ErrTimeout) {
			t.Fatalf("expected timeout, got %v", err)
		}
	})
}
