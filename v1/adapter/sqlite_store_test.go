package adapter_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mirkobrombin/go-stretch/v1/adapter"
	"github.com/mirkobrombin/go-stretch/v1/record"
)

func newSQLiteStore(t *testing.T, path string, opts ...adapter.SQLiteOption) *adapter.SQLiteStore[record.Record] {
	t.Helper()
	db, err := adapter.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	s, err := adapter.NewSQLiteStore[record.Record](context.Background(), db, opts...)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestSQLiteStoreGetSetKeys(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t, filepath.Join(t.TempDir(), "state.db"))

	if _, ok, err := s.Get(ctx, "timer"); err != nil || ok {
		t.Fatalf("Get: expected miss, got ok=%v err=%v", ok, err)
	}
	want := record.Record{State: record.StateRunning, StartTime: 100, TargetDurationMs: 60_000, LastUpdate: 100, ActiveInstanceID: "a"}
	if err := s.Set(ctx, "timer", want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	want.State = record.StateExpired
	if err := s.Set(ctx, "timer", want); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, ok, err := s.Get(ctx, "timer")
	if err != nil || !ok || got != want {
		t.Fatalf("Get: expected %+v, got %+v ok=%v err=%v", want, got, ok, err)
	}
	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "timer" {
		t.Fatalf("Keys: expected [timer], got %v", keys)
	}
}

func TestSQLiteStoreSharedFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	a := newSQLiteStore(t, path, adapter.WithSQLiteCodec(adapter.CBORCodec{}))
	b := newSQLiteStore(t, path, adapter.WithSQLiteCodec(adapter.CBORCodec{}))

	if err := a.Set(ctx, "timer", record.Record{State: record.StateRunning, ActiveInstanceID: "a"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := b.Get(ctx, "timer")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.ActiveInstanceID != "a" {
		t.Fatalf("expected record written by a, got %+v", got)
	}
}

func TestSQLiteStoreInvalidTableName(t *testing.T) {
	db, err := adapter.OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if _, err := adapter.NewSQLiteStore[record.Record](context.Background(), db, adapter.WithSQLiteTableName("x; DROP TABLE y")); err == nil {
		t.Fatal("expected invalid table name error")
	}
}

func TestSQLiteStoreClosedDatabase(t *testing.T) {
	ctx := context.Background()
	db, err := adapter.OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s, err := adapter.NewSQLiteStore[record.Record](ctx, db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	_ = db.Close()
	if _, _, err := s.Get(ctx, "timer"); err == nil {
		t.Fatal("expected error from closed database")
	}
}
