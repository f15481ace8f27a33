package printer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/bambu-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/bambu-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/bambu-telemetry/internal/infrastructure/mqtt"
)

// DefaultSnapshotWait is how long Snapshot listens when Options leaves it unset.
const DefaultSnapshotWait = 5 * time.Second

// Transport is the session the client reads reports from.
// *mqtt.Session satisfies it.
type Transport interface {
	Connect(ctx context.Context) error
	Subscribe(filter string, handler mqtt.MessageHandler) error
	Disconnect()
	HealthCheck(ctx context.Context) error
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that discards all output.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Client. The zero value is usable.
type Options struct {
	// Topic is the subscription filter. Defaults to every topic under the
	// device namespace.
	Topic string

	// SnapshotWait is the fixed listening window of Snapshot.
	// Defaults to DefaultSnapshotWait.
	SnapshotWait time.Duration

	// Logger receives diagnostics. Defaults to a no-op logger.
	Logger Logger

	// Metrics is optional.
	Metrics *Metrics
}

// Client is the device state aggregator for one printer.
//
// Reports are merged on the transport's delivery goroutine, which is the only
// writer of the state. Readers only ever see deep copies.
//
// Thread Safety: all methods are safe for concurrent use. Callbacks must not
// call Disconnect or Snapshot; both wait for the delivery goroutine.
type Client struct {
	transport    Transport
	topic        string
	snapshotWait time.Duration
	logger       Logger
	metrics      *Metrics
	lifecycle    *lifecycle

	// now is replaced in tests.
	now func() time.Time

	mu       sync.Mutex
	state    State
	device   *Device
	updates  uint64
	callback func(*Device)
	lost     chan error
}

// NewClient creates an idle client reading from transport.
func NewClient(transport Transport, opts Options) *Client {
	c := &Client{
		transport:    transport,
		topic:        opts.Topic,
		snapshotWait: opts.SnapshotWait,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		now:          time.Now,
		lost:         make(chan error, 1),
	}
	if c.topic == "" {
		c.topic = mqtt.Topics{}.AllDevices()
	}
	if c.snapshotWait <= 0 {
		c.snapshotWait = DefaultSnapshotWait
	}
	if c.logger == nil {
		c.logger = noopLogger{}
	}
	c.lifecycle = newLifecycle(c.enterState)
	return c
}

// New creates a client for the printer described by cfg, backed by an MQTT
// session. logger may be nil; metrics may be nil.
func New(cfg *config.Config, logger *logging.Logger, metrics *Metrics) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.With("printer", cfg.BrokerAddress())

	session := mqtt.NewSession(mqtt.Endpoint{Host: cfg.Printer.Host, Port: cfg.Printer.Port}, cfg.MQTT)
	session.SetLogger(logger.With("component", "mqtt"))

	c := NewClient(session, Options{
		Topic:        cfg.MQTT.Topic,
		SnapshotWait: cfg.Snapshot.Wait,
		Logger:       logger,
		Metrics:      metrics,
	})

	session.SetOnConnect(func(status mqtt.ConnectStatus) {
		c.logger.Debug("connect attempt finished",
			"return_code", status.Code,
			"accepted", status.Accepted(),
		)
	})
	session.SetOnConnectionLost(c.handleConnectionLost)
	return c
}

// Connect opens the transport session.
//
// Calling Connect on a connected client reconnects. On error the client is
// idle and the error wraps the transport's (mqtt.ErrConnectionFailed and,
// where it applies, mqtt.ErrConnectionTimeout or the context error).
func (c *Client) Connect(ctx context.Context) error {
	if c.transport == nil {
		return ErrNoTransport
	}

	c.logger.Debug("connecting to printer")

	if err := c.transport.Connect(ctx); err != nil {
		c.metrics.connectAttempt(false)
		// A failed reconnect has already torn down the previous session.
		c.transition(eventDisconnect)
		return fmt.Errorf("connecting to printer: %w", err)
	}

	c.mu.Lock()
	c.lost = make(chan error, 1)
	c.mu.Unlock()

	c.metrics.connectAttempt(true)
	c.transition(eventConnect)
	return nil
}

// Subscribe starts merging reports and calls callback with a fresh *Device
// after every merge, from the transport's delivery goroutine.
//
// A nil callback is allowed; the state is still tracked and available from
// Device. Subscribing again replaces the callback.
func (c *Client) Subscribe(callback func(*Device)) error {
	if c.transport == nil {
		return ErrNoTransport
	}

	c.mu.Lock()
	c.callback = callback
	c.mu.Unlock()

	c.logger.Debug("subscribing to printer reports", "topic", c.topic)

	if err := c.transport.Subscribe(c.topic, c.handleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", c.topic, err)
	}
	return nil
}

// handleMessage is the transport handler. It is only ever run by the
// delivery goroutine, so it is the single writer of c.state.
//
// A decode failure leaves the state untouched. The returned error is logged
// by the transport and never stops delivery.
func (c *Client) handleMessage(topic string, payload []byte) error {
	c.metrics.reportReceived()

	update, err := decodePayload(payload)
	if err != nil {
		c.metrics.decodeFailed()
		return fmt.Errorf("report on %s: %w", topic, err)
	}

	now := c.now()

	c.mu.Lock()
	if c.state == nil {
		c.state = update
	} else {
		c.state.Merge(update)
	}
	c.updates++
	device := newDevice(c.state, topic, c.updates, now)
	c.device = device
	callback := c.callback
	fields := len(c.state)
	c.mu.Unlock()

	c.metrics.stateMerged(fields, now)
	c.transition(eventReport)

	c.logger.Debug("printer state updated", "topic", topic, "fields", fields, "updates", device.Updates)

	if callback != nil {
		callback(device)
	}
	return nil
}

// Disconnect closes the transport session. It is safe to call on an idle
// client. When it returns no delivery goroutine is running.
func (c *Client) Disconnect() {
	if c.transport == nil {
		return
	}
	c.transport.Disconnect()
	c.transition(eventDisconnect)
}

// Snapshot connects, listens for the configured wait window, disconnects and
// returns the last state received in that window.
//
// The window is fixed: reports never shorten it, and the full window
// elapses even if a report arrives immediately. A nil *Device with a nil
// error means nothing was published in time. Connection errors are returned
// as from Connect.
//
// Cancelling ctx is the one way to end the window early. This departs from
// the fixed window on purpose so callers can abort; the session is still
// closed, no state is returned and the error wraps ctx's error.
//
// Snapshot replaces any callback registered with Subscribe.
func (c *Client) Snapshot(ctx context.Context) (*Device, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		latest *Device
	)
	record := func(d *Device) {
		mu.Lock()
		latest = d
		mu.Unlock()
	}

	if err := c.Subscribe(record); err != nil {
		c.Disconnect()
		return nil, err
	}

	c.logger.Debug("waiting for printer reports", "wait", c.snapshotWait)

	timer := time.NewTimer(c.snapshotWait)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		c.Disconnect()
		return nil, fmt.Errorf("printer snapshot: %w", ctx.Err())
	}

	c.Disconnect()

	mu.Lock()
	defer mu.Unlock()
	if latest == nil {
		c.logger.Info("no printer state received", "wait", c.snapshotWait)
	}
	return latest, nil
}

// Device returns the latest merged state, or nil before the first report.
func (c *Client) Device() *Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device
}

// Status returns the lifecycle state: StatusIdle, StatusConnected,
// StatusTracking or StatusLost.
func (c *Client) Status() string {
	return c.lifecycle.Current()
}

// Lost returns a channel that receives one error when the broker drops the
// session opened by the last successful Connect. The error wraps
// mqtt.ErrConnectionClosed. Call Lost after Connect; each Connect replaces
// the channel.
func (c *Client) Lost() <-chan error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lost
}

// HealthCheck reports whether the session is open and alive.
//
// Returns:
//   - error: nil if healthy, mqtt.ErrConnectionClosed after a broker drop,
//     otherwise the transport's error (mqtt.ErrNotConnected when idle)
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.transport == nil {
		return ErrNoTransport
	}
	if c.Status() == StatusLost {
		return fmt.Errorf("printer health: %w", mqtt.ErrConnectionClosed)
	}
	if err := c.transport.HealthCheck(ctx); err != nil {
		return fmt.Errorf("printer health: %w", err)
	}
	return nil
}

// Topic returns the subscription filter.
func (c *Client) Topic() string {
	return c.topic
}

// handleConnectionLost is registered with the MQTT session. No reconnect is
// attempted: the client moves to StatusLost and reports the cause on Lost.
func (c *Client) handleConnectionLost(err error) {
	c.metrics.connectionLost()
	c.logger.Warn("printer connection lost", "error", err, "status", c.Status())
	c.transition(eventLost)

	c.mu.Lock()
	lost := c.lost
	c.mu.Unlock()

	cause := mqtt.ErrConnectionClosed
	if err != nil {
		cause = fmt.Errorf("%w: %w", mqtt.ErrConnectionClosed, err)
	}
	select {
	case lost <- cause:
	default:
	}
}

func (c *Client) transition(event string) {
	if err := c.lifecycle.fire(event); err != nil {
		c.logger.Debug("lifecycle transition skipped", "event", event, "error", err)
	}
}

func (c *Client) enterState(src, dst string) {
	c.metrics.setConnected(dst == StatusConnected || dst == StatusTracking)
	c.logger.Debug("printer lifecycle", "from", src, "to", dst)
}

// Run connects c, calls fn and disconnects on every exit path, including
// errors and panics. A connect error is returned without calling fn.
func Run(ctx context.Context, c *Client, fn func(ctx context.Context, c *Client) error) error {
	defer c.Disconnect()

	if err := c.Connect(ctx); err != nil {
		return err
	}
	return fn(ctx, c)
}
