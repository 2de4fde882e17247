package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	natsserver "github.com/nats-io/nats-server/v2/test"

	"github.com/mirkobrombin/go-stretch/v1/config"
	"github.com/mirkobrombin/go-stretch/v1/host"
	"github.com/mirkobrombin/go-stretch/v1/record"
	"github.com/mirkobrombin/go-stretch/v1/state"
)

func TestOpenBackendsSQLiteShared(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Store.Backend = config.BackendSQLite
	cfg.Store.Path = filepath.Join(t.TempDir(), "state.db")
	cfg.Store.Codec = "cbor"

	a, err := openBackends(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("open a: %v", err)
	}
	defer a.Close()
	b, err := openBackends(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("open b: %v", err)
	}
	defer b.Close()

	if _, err := state.New(a.kv).Update(ctx, record.Claim("a")); err != nil {
		t.Fatalf("update: %v", err)
	}
	rec, err := state.New(b.kv).Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.ActiveInstanceID != "a" {
		t.Fatalf("expected record shared through the file, got %+v", rec)
	}
}

func TestOpenBackendsRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	cfg := config.Default()
	cfg.Store.Backend = config.BackendRedis
	cfg.Store.RedisAddr = mr.Addr()
	cfg.Bus.Backend = config.BackendRedis

	be, err := openBackends(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer be.Close()
	if be.bus == nil {
		t.Fatal("expected redis bus")
	}
	if _, err := state.New(be.kv).Update(context.Background(), record.Claim("x")); err != nil {
		t.Fatalf("update: %v", err)
	}
	if !mr.Exists(state.DefaultKey) {
		t.Fatal("record not written to redis")
	}
}

func TestOpenBackendsNATS(t *testing.T) {
	s := natsserver.RunRandClientPortServer()
	defer s.Shutdown()
	cfg := config.Default()
	cfg.Store.Backend = config.BackendMemory
	cfg.Bus.Backend = config.BackendNATS
	cfg.Bus.NATSURL = s.ClientURL()
	be, err := openBackends(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer be.Close()
	if be.bus == nil {
		t.Fatal("expected nats bus")
	}
}

func TestOpenBackendsRejectsUnknown(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Backend = "etcd"
	if _, err := openBackends(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unknown store")
	}
	cfg = config.Default()
	cfg.Store.Codec = "xml"
	if _, err := openBackends(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unknown codec")
	}
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("store:\n  backend: sqlite\ninterval_minutes: 30\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	opts := &rootOptions{configPath: path, store: "redis", redisAddr: "10.0.0.1:6379"}
	cfg, got, err := opts.loadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != path || cfg.IntervalMinutes != 30 {
		t.Fatalf("unexpected config %+v from %s", cfg, got)
	}
	if cfg.Store.Backend != "redis" || cfg.Store.RedisAddr != "10.0.0.1:6379" || cfg.Bus.RedisAddr != "10.0.0.1:6379" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
}

func TestWriteRecord(t *testing.T) {
	var buf bytes.Buffer
	now := time.UnixMilli(1_700_000_090_000)
	writeRecord(&buf, record.Record{
		State:            record.StateRunning,
		StartTime:        1_700_000_000_000,
		TargetDurationMs: 120000,
		LastUpdate:       1_700_000_000_000,
	}, now)
	out := buf.String()
	if !strings.Contains(out, "0:30") || !strings.Contains(out, "(none)") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestWriteAllListsStoredRecords(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	ctx := context.Background()
	cfg := config.Default()
	cfg.Store.Backend = config.BackendRedis
	cfg.Store.RedisAddr = mr.Addr()
	be, err := openBackends(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer be.Close()

	var buf bytes.Buffer
	if err := writeAll(ctx, &buf, be.kv, time.Now()); err != nil {
		t.Fatalf("write all: %v", err)
	}
	if !strings.Contains(buf.String(), "no timer records") {
		t.Fatalf("expected empty listing, got %q", buf.String())
	}

	if _, err := state.New(be.kv).Update(ctx, record.Claim("x")); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := state.New(be.kv, state.WithKey("team-timer")).Update(ctx, record.Claim("y")); err != nil {
		t.Fatalf("update: %v", err)
	}
	buf.Reset()
	if err := writeAll(ctx, &buf, be.kv, time.Now()); err != nil {
		t.Fatalf("write all: %v", err)
	}
	out := buf.String()
	first, second := strings.Index(out, state.DefaultKey), strings.Index(out, "team-timer")
	if first < 0 || second < first {
		t.Fatalf("expected both keys in order, got %q", out)
	}
	if !strings.Contains(out, "active:       x") || !strings.Contains(out, "active:       y") {
		t.Fatalf("expected both owners listed, got %q", out)
	}
}

type fakeCommander struct {
	calls    []string
	interval int
}

func (f *fakeCommander) Start(context.Context) error { f.calls = append(f.calls, "start"); return nil }
func (f *fakeCommander) Stop(context.Context) error { f.calls = append(f.calls, "stop"); return nil }
func (f *fakeCommander) Reset(context.Context) error { f.calls = append(f.calls, "reset"); return nil }
func (f *fakeCommander) Claim(context.Context) error { f.calls = append(f.calls, "claim"); return nil }
func (f *fakeCommander) Focus() { f.calls = append(f.calls, "focus") }
func (f *fakeCommander) SetInterval(_ context.Context, m int) error {
	f.interval = m
	f.calls = append(f.calls, "interval")
	return nil
}
func (f *fakeCommander) Status(context.Context) (host.Snapshot, error) {
	f.calls = append(f.calls, "status")
	return host.Snapshot{ID: "me", State: record.StateStopped, Active: true, IntervalMinutes: 60}, nil
}

func TestConsoleExec(t *testing.T) {
	var buf bytes.Buffer
	fc := &fakeCommander{}
	c := &console{host: fc, out: &buf}
	ctx := context.Background()
	for _, line := range []string{"start", "STOP", "r", "claim", "f", "interval 45", "interval", "interval x", "status", "bogus", ""} {
		if c.exec(ctx, line) {
			t.Fatalf("%q must not quit", line)
		}
	}
	want := "start,stop,reset,claim,focus,interval,status"
	if got := strings.Join(fc.calls, ","); got != want {
		t.Fatalf("expected %s got %s", want, got)
	}
	if fc.interval != 45 {
		t.Fatalf("expected interval 45 got %d", fc.interval)
	}
	out := buf.String()
	for _, s := range []string{"Usage: interval", "invalid minutes", "Unknown command: bogus", "active: yes"} {
		if !strings.Contains(out, s) {
			t.Fatalf("missing %q in %q", s, out)
		}
	}
	if !c.exec(ctx, "quit") {
		t.Fatal("quit must exit")
	}
}
