package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	nats "github.com/nats-io/nats.go"
	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-stretch/v1/adapter"
	"github.com/mirkobrombin/go-stretch/v1/config"
	"github.com/mirkobrombin/go-stretch/v1/record"
	"github.com/mirkobrombin/go-stretch/v1/syncbus"
)

// backends holds the opened store and bus of one process.
type backends struct {
	kv      adapter.Store[record.Record]
	bus     syncbus.Bus
	closers []func() error
}

func (b *backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openBackends connects the store and bus selected by cfg. Persistent
// stores are wrapped so an outage degrades to a per-process timer.
func openBackends(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{}
	codec, err := adapter.CodecByName(cfg.Store.Codec)
	if err != nil {
		return nil, err
	}

	switch cfg.Store.Backend {
	case "", config.BackendMemory:
		b.kv = adapter.NewInMemoryStore[record.Record]()
	case config.BackendSQLite:
		path := cfg.Store.Path
		if path == "" {
			if path, err = config.DefaultSQLitePath(); err != nil {
				return nil, err
			}
		}
		db, err := adapter.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		store, err := adapter.NewSQLiteStore[record.Record](ctx, db, adapter.WithSQLiteCodec(codec))
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.kv = adapter.NewResilient[record.Record](store, logger)
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: redisAddr(cfg.Store.RedisAddr)})
		b.closers = append(b.closers, client.Close)
		b.kv = adapter.NewResilient[record.Record](
			adapter.NewRedisStore[record.Record](client, adapter.WithRedisCodec(codec)), logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	switch cfg.Bus.Backend {
	case "", config.BackendNone:
	case config.BackendRedis:
		addr := cfg.Bus.RedisAddr
		if addr == "" {
			addr = cfg.Store.RedisAddr
		}
		client := redis.NewClient(&redis.Options{Addr: redisAddr(addr)})
		b.closers = append(b.closers, client.Close)
		b.bus = syncbus.NewRedisBus(client)
	case config.BackendNATS:
		url := cfg.Bus.NATSURL
		if url == "" {
			url = nats.DefaultURL
		}
		conn, err := nats.Connect(url, nats.Name("stretch"))
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		b.closers = append(b.closers, func() error { conn.Close(); return nil })
		b.bus = syncbus.NewNATSBus(conn)
	default:
		_ = b.Close()
		return nil, fmt.Errorf("unknown bus backend %q", cfg.Bus.Backend)
	}
	return b, nil
}

func redisAddr(addr string) string {
	if addr == "" {
		return "127.0.0.1:6379"
	}
	return addr
}
