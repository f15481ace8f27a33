package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// DefaultTopic is the wildcard covering every sub-topic a printer publishes under.
const DefaultTopic = "device/#"

// Config is the root configuration structure for bambuwatch.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Printer  PrinterConfig  `yaml:"printer"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// PrinterConfig identifies the broker endpoint running on the printer.
type PrinterConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// MQTTConfig contains MQTT session settings.
type MQTTConfig struct {
	// ClientID is generated per process when empty.
	ClientID string `yaml:"client_id"`

	// Topic is the subscription filter for device state reports.
	Topic string `yaml:"topic"`

	QoS int `yaml:"qos"`

	// ConnectTimeout bounds the initial handshake.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// SnapshotConfig controls one-shot state retrieval.
type SnapshotConfig struct {
	// Wait is how long a snapshot listens before disconnecting.
	// The full duration always elapses.
	Wait time.Duration `yaml:"wait"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig contains Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Read loads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: BAMBU_SECTION_KEY
// For example: BAMBU_PRINTER_HOST, BAMBU_LOG_LEVEL
//
// The result is not validated: callers apply command-line overrides first
// and then call Validate.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded configuration
//   - error: If the file cannot be read or parsed
func Read(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.fillClientID()

	return cfg, nil
}

// FromEnv builds a configuration from defaults and environment variables only.
// It is used when no config file is given; the result is not yet validated
// because command-line flags may still fill in the printer host.
func FromEnv() *Config {
	cfg := Default()
	applyEnvOverrides(cfg)
	cfg.fillClientID()
	return cfg
}

// Default returns a Config with sensible defaults.
// Printer.Host is intentionally empty: there is no discovery, so the
// address must always be supplied.
func Default() *Config {
	return &Config{
		Printer: PrinterConfig{
			Port: 1883,
		},
		MQTT: MQTTConfig{
			Topic:          DefaultTopic,
			QoS:            0,
			ConnectTimeout: 10 * time.Second,
		},
		Snapshot: SnapshotConfig{
			Wait: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Listen: ":9100",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BAMBU_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Printer
	if v := os.Getenv("BAMBU_PRINTER_HOST"); v != "" {
		cfg.Printer.Host = v
	}
	if v := os.Getenv("BAMBU_PRINTER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Printer.Port = port
		}
	}

	// MQTT
	if v := os.Getenv("BAMBU_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.ClientID = v
	}
	if v := os.Getenv("BAMBU_MQTT_TOPIC"); v != "" {
		cfg.MQTT.Topic = v
	}

	// Snapshot
	if v := os.Getenv("BAMBU_SNAPSHOT_WAIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Snapshot.Wait = d
		}
	}

	// Logging
	if v := os.Getenv("BAMBU_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Metrics
	if v := os.Getenv("BAMBU_METRICS_LISTEN"); v != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen = v
	}
}

// fillClientID assigns a unique client ID when none was configured.
// Brokers drop the older session when two clients share an ID.
func (c *Config) fillClientID() {
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = GenerateClientID()
	}
}

// GenerateClientID returns a fresh MQTT client identifier.
func GenerateClientID() string {
	return "bambuwatch-" + uuid.NewString()
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Printer validation
	if c.Printer.Host == "" {
		errs = append(errs, "printer.host is required (set BAMBU_PRINTER_HOST environment variable)")
	}
	if c.Printer.Port < 1 || c.Printer.Port > 65535 {
		errs = append(errs, "printer.port must be between 1 and 65535")
	}

	// MQTT validation
	if c.MQTT.Topic == "" {
		errs = append(errs, "mqtt.topic is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.ConnectTimeout <= 0 {
		errs = append(errs, "mqtt.connect_timeout must be positive")
	}

	// Snapshot validation
	if c.Snapshot.Wait <= 0 {
		errs = append(errs, "snapshot.wait must be positive")
	}

	// Metrics validation
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, "metrics.listen is required when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// BrokerAddress returns host:port of the printer's broker.
func (c *Config) BrokerAddress() string {
	return fmt.Sprintf("%s:%d", c.Printer.Host, c.Printer.Port)
}
