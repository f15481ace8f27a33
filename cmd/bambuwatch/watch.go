package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/bambu-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/bambu-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/bambu-telemetry/internal/printer"
)

type watchOptions struct {
	json bool
}

func newWatchCommand(root *rootOptions) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print every state update until interrupted",
		Long: `watch keeps a session open and prints one line per report, listing the
fields that changed. With --json the full merged state is printed instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			log := newLogger(cmd, cfg)
			return runWatch(cmd.Context(), cmd, cfg, log, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.json, "json", false, "print the full state as one JSON object per update")

	return cmd
}

// runWatch streams updates until ctx is cancelled or the broker drops the
// session. A drop is returned as an error wrapping mqtt.ErrConnectionClosed.
// When metrics are enabled the metrics server runs alongside; either failing
// stops both.
func runWatch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, log *logging.Logger, opts *watchOptions) error {
	var metrics *printer.Metrics
	reg, m := newRegistry()
	if cfg.Metrics.Enabled {
		metrics = m
	}

	client := printer.New(cfg, log, metrics)
	out := cmd.OutOrStdout()

	log.Info("watching printer",
		"printer", cfg.BrokerAddress(),
		"topic", cfg.MQTT.Topic,
		"version", version,
	)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Metrics.Listen, newMetricsHandler(reg, client), log)
		})
	}

	g.Go(func() error {
		return printer.Run(gctx, client, func(ctx context.Context, c *printer.Client) error {
			// Only touched from the delivery goroutine.
			var prev printer.State

			err := c.Subscribe(func(d *printer.Device) {
				if opts.json {
					if err := printJSON(out, d, false); err != nil {
						log.Warn("writing update", "error", err)
					}
				} else {
					printDelta(out, prev, d)
				}
				prev = d.State
			})
			if err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				log.Info("stopping watch", "updates", deviceUpdates(c.Device()))
				return nil
			case err := <-c.Lost():
				log.Error("printer session dropped", "error", err, "updates", deviceUpdates(c.Device()))
				return fmt.Errorf("watching %s: %w", cfg.BrokerAddress(), err)
			}
		})
	})

	return g.Wait()
}

func deviceUpdates(d *printer.Device) uint64 {
	if d == nil {
		return 0
	}
	return d.Updates
}
