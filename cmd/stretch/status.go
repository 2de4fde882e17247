package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/mirkobrombin/go-stretch/v1/adapter"
	"github.com/mirkobrombin/go-stretch/v1/record"
	"github.com/mirkobrombin/go-stretch/v1/state"
	"github.com/mirkobrombin/go-stretch/v1/status"
)

func statusCmd(opts *rootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the shared timer without taking control",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printStatus(cmd.Context(), cmd.OutOrStdout(), opts, all)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "list every timer record in the store")
	return cmd
}

func printStatus(ctx context.Context, out io.Writer, opts *rootOptions, all bool) error {
	cfg, _, err := opts.loadConfig()
	if err != nil {
		return err
	}
	be, err := openBackends(ctx, cfg, opts.logger())
	if err != nil {
		return err
	}
	defer be.Close()

	if all {
		return writeAll(ctx, out, be.kv, time.Now())
	}
	rec, err := state.New(be.kv, state.WithKey(cfg.Store.Key)).Load(ctx)
	if err != nil {
		return err
	}
	writeRecord(out, rec, time.Now())
	return nil
}

func writeRecord(out io.Writer, rec record.Record, now time.Time) {
	active := rec.ActiveInstanceID
	if active == "" {
		active = "(none)"
	}
	fmt.Fprintf(out, "  state:        %s\n", status.Label(rec.State, rec.Remaining(now)))
	fmt.Fprintf(out, "  active:       %s\n", active)
	if rec.LastUpdate > 0 {
		fmt.Fprintf(out, "  last update:  %s\n", time.UnixMilli(rec.LastUpdate).Format(time.RFC3339))
	}
}

// writeAll prints every record in kv. Keys that do not decode as a timer
// record are listed as unreadable.
func writeAll(ctx context.Context, out io.Writer, kv adapter.Store[record.Record], now time.Time) error {
	keys, err := kv.Keys(ctx)
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}
	if len(keys) == 0 {
		fmt.Fprintln(out, "no timer records")
		return nil
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(out, "%s\n", key)
		rec, err := state.New(kv, state.WithKey(key)).Load(ctx)
		if err != nil {
			fmt.Fprintf(out, "  unreadable:   %v\n", err)
			continue
		}
		writeRecord(out, rec, now)
	}
	return nil
}
