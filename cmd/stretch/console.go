package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/mirkobrombin/go-stretch/v1/host"
	"github.com/mirkobrombin/go-stretch/v1/status"
)

// commander is the part of host.Host driven by the console.
type commander interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Reset(ctx context.Context) error
	Claim(ctx context.Context) error
	Focus()
	SetInterval(ctx context.Context, minutes int) error
	Status(ctx context.Context) (host.Snapshot, error)
}

type console struct {
	rl   *readline.Instance
	host commander
	out  io.Writer
}

// Run reads commands until quit, EOF or ctx is done.
func (c *console) Run(ctx context.Context) error {
	c.printHelp()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			return nil
		}
		if quit := c.exec(ctx, line); quit {
			fmt.Fprintln(c.out, "Exiting...")
			return nil
		}
	}
}

// exec runs one command line and reports whether the console should exit.
func (c *console) exec(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		c.printHelp()
	case "start", "s":
		err = c.host.Start(ctx)
	case "stop":
		err = c.host.Stop(ctx)
	case "reset", "r":
		err = c.host.Reset(ctx)
	case "claim", "c":
		err = c.host.Claim(ctx)
	case "focus", "f":
		c.host.Focus()
	case "interval", "i":
		err = c.interval(ctx, args)
	case "status", "st":
		err = c.status(ctx)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
	return false
}

func (c *console) interval(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: interval <minutes>")
		fmt.Fprintln(c.out, "  Example: interval 45")
		return nil
	}
	minutes, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid minutes %q", args[0])
	}
	return c.host.SetInterval(ctx, minutes)
}

func (c *console) status(ctx context.Context) error {
	snap, err := c.host.Status(ctx)
	if err != nil {
		return err
	}
	printSnapshot(c.out, snap)
	return nil
}

func printSnapshot(out io.Writer, snap host.Snapshot) {
	active := "no"
	if snap.Active {
		active = "yes"
	}
	fmt.Fprintf(out, "  state:     %s\n", status.Label(snap.State, snap.Remaining))
	fmt.Fprintf(out, "  instance:  %s (active: %s)\n", snap.ID, active)
	fmt.Fprintf(out, "  interval:  %d minutes\n", snap.IntervalMinutes)
}

func (c *console) printHelp() {
	fmt.Fprintln(c.out, `
Commands:
  start, s              Start the timer and take control
  stop                  Stop the timer
  reset, r              Reset the timer and close the overlay
  claim, c              Take control of the running timer
  focus, f              Signal focus (claims after the debounce)
  interval, i <min>     Set the interval (1-480 minutes)
  status, st            Show the shared timer
  help, ?               Show this help
  quit, q               Exit`)
}
