package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"screensnap/src/capture"
	"screensnap/src/singleinstance"
)

type stressOptions struct {
	n        int
	mode     string
	deadline time.Duration
}

// counts is the tally of one run.
type counts struct {
	accepted   int32
	busy       int32
	errors     int32
	noResident int32
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-trigger",
		Short:         "Fire concurrent capture delegations at the resident",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := capture.ParseMode(opts.mode)
			if err != nil {
				return err
			}
			return runWithOptions(*opts, mode, singleinstance.NewClient, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of clients to launch")
	cmd.Flags().StringVar(&opts.mode, "mode", "area", "area|full: capture mode to request")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")

	return cmd
}

func runWithOptions(opts stressOptions, mode capture.Mode, newClient func() singleinstance.Client, out io.Writer) error {
	if opts.n <= 0 {
		return fmt.Errorf("--n must be positive, got %d", opts.n)
	}
	var wg sync.WaitGroup
	var c counts

	start := time.Now()
	for i := 0; i < opts.n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), opts.deadline)
			defer cancel()
			delegated, err := newClient().TryCapture(ctx, mode)
			c.record(delegated, err)
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)
	fmt.Fprintf(out, "launched=%d accepted=%d busy=%d err=%d no_resident=%d elapsed=%s\n",
		opts.n, c.accepted, c.busy, c.errors, c.noResident, elapsed)
	return nil
}

func (c *counts) record(delegated bool, err error) {
	switch {
	case err != nil && strings.Contains(err.Error(), capture.ErrInProgress.Error()):
		atomic.AddInt32(&c.busy, 1)
	case err != nil:
		atomic.AddInt32(&c.errors, 1)
	case delegated:
		atomic.AddInt32(&c.accepted, 1)
	default:
		atomic.AddInt32(&c.noResident, 1)
	}
}
