package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/bambu-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/bambu-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/bambu-telemetry/internal/printer"
)

// noStateMessage is printed when the printer published nothing in the window.
const noStateMessage = "no state received"

type snapshotOptions struct {
	wait    time.Duration
	compact bool
	table   bool
}

func newSnapshotCommand(root *rootOptions) *cobra.Command {
	opts := &snapshotOptions{}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Listen for a fixed window and print the merged state",
		Long: `snapshot connects, listens for the whole wait window, disconnects and prints
the merged state as JSON. If nothing arrived it prints "` + noStateMessage + `"
and still exits 0.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("wait") {
				cfg.Snapshot.Wait = opts.wait
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			log := newLogger(cmd, cfg)
			return runSnapshot(cmd.Context(), cmd, cfg, log, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.wait, "wait", 5*time.Second, "how long to listen before disconnecting")
	cmd.Flags().BoolVar(&opts.compact, "compact", false, "print JSON on a single line")
	cmd.Flags().BoolVar(&opts.table, "table", false, "print top-level fields as a table instead of JSON")

	return cmd
}

func runSnapshot(ctx context.Context, cmd *cobra.Command, cfg *config.Config, log *logging.Logger, opts *snapshotOptions) error {
	client := printer.New(cfg, log, nil)

	log.Info("taking printer snapshot",
		"printer", cfg.BrokerAddress(),
		"wait", cfg.Snapshot.Wait,
	)

	device, err := client.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot of %s: %w", cfg.BrokerAddress(), err)
	}

	out := cmd.OutOrStdout()
	if device == nil {
		fmt.Fprintln(out, noStateMessage)
		return nil
	}
	if opts.table {
		printTable(out, device)
		return nil
	}
	return printJSON(out, device, !opts.compact)
}
