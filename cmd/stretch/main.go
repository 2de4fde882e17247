package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mirkobrombin/go-stretch/v1/config"
)

type rootOptions struct {
	configPath string
	store      string
	storePath  string
	redisAddr  string
	bus        string
	natsURL    string
	verbose    bool
}

func main() {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "stretch",
		Short: "Shared recurring stretch timer",
		Long: `stretch runs a recurring countdown shared by every instance pointed at the
same store. One instance at a time is active and shows the stretch overlay
when the period ends.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "settings file (default: user config dir)")
	flags.StringVar(&opts.store, "store", "", "store backend: memory, sqlite or redis")
	flags.StringVar(&opts.storePath, "store-path", "", "sqlite database file")
	flags.StringVar(&opts.redisAddr, "redis-addr", "", "redis address for the store and bus")
	flags.StringVar(&opts.bus, "bus", "", "change bus: none, redis or nats")
	flags.StringVar(&opts.natsURL, "nats-url", "", "nats server url")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd(opts))
	rootCmd.AddCommand(statusCmd(opts))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the settings file and applies flag overrides. It also
// returns the path changes should be saved to.
func (o *rootOptions) loadConfig() (config.Config, string, error) {
	path := o.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return config.Config{}, "", err
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, path, err
	}
	if o.store != "" {
		cfg.Store.Backend = o.store
	}
	if o.storePath != "" {
		cfg.Store.Path = o.storePath
	}
	if o.redisAddr != "" {
		cfg.Store.RedisAddr = o.redisAddr
		cfg.Bus.RedisAddr = o.redisAddr
	}
	if o.bus != "" {
		cfg.Bus.Backend = o.bus
	}
	if o.natsURL != "" {
		cfg.Bus.NATSURL = o.natsURL
	}
	return cfg, path, nil
}

func (o *rootOptions) logger() *slog.Logger {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
