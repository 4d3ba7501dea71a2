package main

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// runOptions holds flags for the run command.
type runOptions struct {
	*rootOptions
	Blocks int
	Sends  []string

	// RunID overrides the generated run id, for reproducible output.
	RunID string
}

func newRunCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [patch]",
		Short: "Process a number of blocks and print the patch's output",
		Long: `Open a patch in every configured instance, send the given messages,
process audio blocks and print each event the patch sends to a bound
receiver.

Messages use the engine's syntax: the first word names the receiver.

Example:
  pdhost run echo.pd --send "in 1 2" --blocks 4
  pdhost run -c host.yaml --send "freq 220"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(cmd, opts, args)
		},
	}

	cmd.Flags().IntVarP(&opts.Blocks, "blocks", "n", 16, "number of blocks to process")
	cmd.Flags().StringArrayVarP(&opts.Sends, "send", "s", nil, "message to send before processing (repeatable)")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run id (default: a new UUIDv7)")

	return cmd
}

func newRunID(override string) string {
	if override != "" {
		return override
	}
	return uuid.Must(uuid.NewV7()).String()
}

func runHost(cmd *cobra.Command, opts *runOptions, args []string) error {
	if opts.Blocks < 0 {
		return fmt.Errorf("--blocks must not be negative, got %d", opts.Blocks)
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	cfg, err := loadConfig(cmd, opts.rootOptions, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	runID := newRunID(opts.RunID)
	h, err := newHost(cfg, runID, func(line string) { fmt.Fprintln(out, line) })
	if err != nil {
		return err
	}

	printHeader(out, h)
	err = func() error {
		for _, line := range opts.Sends {
			if err := h.send(line); err != nil {
				return fmt.Errorf("send %q: %w", line, err)
			}
		}
		for b := 0; b < opts.Blocks; b++ {
			if err := h.process(); err != nil {
				return err
			}
		}
		return nil
	}()
	if closeErr := h.close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, h.summary())
	return nil
}

func printHeader(w io.Writer, h *host) {
	patch := "-"
	if h.cfg.Patch != "" {
		patch = filepath.Base(h.cfg.Patch)
	}
	fmt.Fprintf(w, "run %s engine=%s patch=%s instances=%d block=%d\n",
		h.runID, backendName, patch, len(h.insts), len(h.out)/max(h.cfg.Audio.Outputs, 1))
}
