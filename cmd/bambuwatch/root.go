package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nerrad567/bambu-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/bambu-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/bambu-telemetry/internal/infrastructure/mqtt"
)

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	configPath  string
	host        string
	port        int
	topic       string
	serial      string
	reportsOnly bool
	logLevel    string
	metricsAddr string
}

// Flags registers the shared flags on fs.
func (o *rootOptions) Flags(fs *pflag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "path to a YAML config file (env: BAMBU_CONFIG)")
	fs.StringVar(&o.host, "host", "", "printer address (env: BAMBU_PRINTER_HOST)")
	fs.IntVar(&o.port, "port", 0, "printer MQTT port (default 1883)")
	fs.StringVar(&o.topic, "topic", "", "subscription filter (default \""+config.DefaultTopic+"\")")
	fs.StringVar(&o.serial, "serial", "", "only read the report topic of the printer with this serial")
	fs.BoolVar(&o.reportsOnly, "reports-only", false, "only read report topics, of any printer serial")
	fs.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9100")
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "bambuwatch",
		Short: "Read-only telemetry client for Bambu Lab printers",
		Long: `bambuwatch subscribes to the MQTT broker of a single Bambu Lab printer and
merges the partial state reports it publishes into one device state.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.Flags(cmd.PersistentFlags())

	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newSnapshotCommand(opts))

	return cmd
}

// loadConfig builds the configuration: defaults, then the config file (or
// BAMBU_CONFIG), then BAMBU_* environment variables, then flags.
func (o *rootOptions) loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	path := o.configPath
	if path == "" {
		path = os.Getenv("BAMBU_CONFIG")
	}

	var cfg *config.Config
	if path != "" {
		var err error
		if cfg, err = config.Read(path); err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.FromEnv()
	}

	if flags.Changed("host") {
		cfg.Printer.Host = o.host
	}
	if flags.Changed("port") {
		cfg.Printer.Port = o.port
	}
	topicFlags := 0
	for _, name := range []string{"topic", "serial", "reports-only"} {
		if flags.Changed(name) {
			topicFlags++
		}
	}
	if topicFlags > 1 {
		return nil, errors.New("--topic, --serial and --reports-only are mutually exclusive")
	}
	switch {
	case flags.Changed("topic"):
		cfg.MQTT.Topic = o.topic
	case flags.Changed("serial"):
		if o.serial == "" {
			return nil, errors.New("--serial must not be empty")
		}
		cfg.MQTT.Topic = mqtt.Topics{}.DeviceReport(o.serial)
	case flags.Changed("reports-only") && o.reportsOnly:
		cfg.MQTT.Topic = mqtt.Topics{}.AllDeviceReports()
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Enabled = o.metricsAddr != ""
		cfg.Metrics.Listen = o.metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the diagnostics logger. Command output goes to stdout, so
// logs default to the command's stderr. Redirected command streams (tests,
// embedding) receive the logs instead of the process streams.
func newLogger(cmd *cobra.Command, cfg *config.Config) *logging.Logger {
	if cmd.OutOrStdout() == os.Stdout && cmd.ErrOrStderr() == os.Stderr {
		return logging.New(cfg.Logging, version)
	}

	var w io.Writer = cmd.ErrOrStderr()
	if strings.EqualFold(cfg.Logging.Output, "stdout") {
		w = cmd.OutOrStdout()
	}
	return logging.NewWithWriter(cfg.Logging, version, w)
}
