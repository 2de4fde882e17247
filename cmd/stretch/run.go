package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mirkobrombin/go-stretch/v1/config"
	"github.com/mirkobrombin/go-stretch/v1/host"
	"github.com/mirkobrombin/go-stretch/v1/metrics"
	"github.com/mirkobrombin/go-stretch/v1/overlay"
	"github.com/mirkobrombin/go-stretch/v1/state"
	"github.com/mirkobrombin/go-stretch/v1/status"
	"github.com/mirkobrombin/go-stretch/v1/timer"
)

const shutdownTimeout = 5 * time.Second

func runCmd(opts *rootOptions) *cobra.Command {
	var trace bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a timer instance with an interactive console",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, trace)
		},
	}
	cmd.Flags().BoolVar(&trace, "trace", false, "print store spans to stderr")
	return cmd
}

func run(ctx context.Context, opts *rootOptions, trace bool) error {
	cfg, path, err := opts.loadConfig()
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "stretch> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	closeConsole := sync.OnceValue(rl.Close)
	defer closeConsole()

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(rl.Stderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if trace {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(rl.Stderr()))
		if err != nil {
			return err
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
		defer func() { _ = tp.Shutdown(context.Background()) }()
		otel.SetTracerProvider(tp)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.Close()

	id := timer.NewIdentity()
	storeOpts := []state.Option{state.WithKey(cfg.Store.Key), state.WithLogger(logger)}
	if be.bus != nil {
		storeOpts = append(storeOpts, state.WithBus(be.bus, id))
	}
	store := state.New(be.kv, storeOpts...)
	live := config.NewLive(cfg, path)

	tm, err := timer.Shared(ctx, store,
		timer.WithIdentity(id),
		timer.WithInterval(live.Interval),
		timer.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	ov := overlay.NewServer(cfg.OverlayURL, overlay.WithLogger(logger))
	h := host.New(tm, live,
		host.WithOverlay(ov),
		host.WithIndicator(status.Multi{status.NewTerminal(rl.Stdout()), ov}),
		host.WithWatcher(store),
		host.WithNotify(func(msg string) { fmt.Fprintln(rl.Stdout(), msg) }),
		host.WithClaimDebounce(cfg.ClaimDebounce),
		host.WithLogger(logger),
	)

	g, gctx := errgroup.WithContext(ctx)
	serve(gctx, g, &http.Server{Addr: cfg.OverlayAddr, Handler: ov.Handler()})
	fmt.Fprintf(rl.Stdout(), "overlay page: http://%s/\n", cfg.OverlayAddr)

	if cfg.MetricsAddr != "" {
		reg := metrics.NewRegistry()
		metrics.RegisterTimerMetrics(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		serve(gctx, g, &http.Server{Addr: cfg.MetricsAddr, Handler: mux})
	}

	if err := h.Initialize(ctx); err != nil {
		stop()
		_ = g.Wait()
		return err
	}
	defer h.Teardown(context.Background())

	con := &console{rl: rl, host: h, out: rl.Stdout()}
	g.Go(func() error {
		<-gctx.Done()
		return closeConsole()
	})
	g.Go(func() error {
		err := con.Run(gctx)
		stop()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// serve runs srv in g and shuts it down when ctx is done.
func serve(ctx context.Context, g *errgroup.Group, srv *http.Server) {
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve %s: %w", srv.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
}
