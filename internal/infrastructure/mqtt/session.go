package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/bambu-telemetry/internal/infrastructure/config"
)

// ReturnCodeUnknown is reported in ConnectStatus when the broker never
// answered the CONNECT packet (timeout, cancellation, dial failure).
const ReturnCodeUnknown byte = 0xFF

// Session owns at most one paho connection to a single printer broker.
//
// Inbound messages are pushed by paho onto a buffered channel and consumed
// by one delivery goroutine, so handlers are never run concurrently with
// each other and see messages in arrival order. The goroutine is started by
// Connect and joined by Disconnect.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Handlers must not call Disconnect; it waits for the delivery goroutine.
type Session struct {
	endpoint       Endpoint
	clientID       string
	qos            byte
	connectTimeout time.Duration
	inboxSize      int

	// newClient builds the underlying paho client. Replaced in tests.
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client

	// connectMu serializes Connect and Disconnect so at most one paho
	// client and one delivery goroutine exist at a time.
	connectMu sync.Mutex

	// mu guards the connection fields below.
	mu        sync.Mutex
	client    pahomqtt.Client
	connected bool
	sub       *subscription
	inbox     chan inbound
	stop      chan struct{}
	done      chan struct{}

	// Callbacks for connection events (optional).
	onConnect        func(ConnectStatus)
	onConnectionLost func(err error)
	callbackMu       sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ConnectStatus describes the outcome of one connection attempt.
type ConnectStatus struct {
	// Code is the CONNACK return code, or ReturnCodeUnknown when the broker
	// never answered.
	Code byte

	// Err is nil when the connection was accepted.
	Err error
}

// Accepted reports whether the broker accepted the connection.
func (s ConnectStatus) Accepted() bool {
	return s.Err == nil && s.Code == 0
}

// inbound is one message queued for the delivery goroutine.
type inbound struct {
	topic   string
	payload []byte
}

// NewSession creates a disconnected session for the given endpoint.
//
// Parameters:
//   - endpoint: Broker host and port
//   - cfg: MQTT settings (client ID, QoS, connect timeout)
//
// Returns:
//   - *Session: Session ready for Connect
func NewSession(endpoint Endpoint, cfg config.MQTTConfig) *Session {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = config.GenerateClientID()
	}

	return &Session{
		endpoint:       endpoint,
		clientID:       clientID,
		qos:            byte(cfg.QoS),
		connectTimeout: timeout,
		inboxSize:      defaultInboxSize,
		newClient:      pahomqtt.NewClient,
		logger:         nopLogger{},
	}
}

// Endpoint returns the broker endpoint of the session.
func (s *Session) Endpoint() Endpoint {
	return s.endpoint
}

// Connect establishes a connection to the broker and starts the delivery
// goroutine.
//
// Calling Connect on a connected session disconnects first and then dials
// again. On failure no goroutine is left running and the session stays
// disconnected. Concurrent calls are serialized.
//
// Parameters:
//   - ctx: Bounds the handshake together with the configured connect timeout
//
// Returns:
//   - error: wraps ErrConnectionFailed (and ErrConnectionTimeout or ctx.Err()
//     where applicable), nil on success
func (s *Session) Connect(ctx context.Context) error {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	s.mu.Lock()
	reconnect := s.client != nil
	s.mu.Unlock()
	if reconnect {
		s.getLogger().Info("session already open, reconnecting", "broker", s.endpoint.URL())
		s.disconnect()
	}

	s.getLogger().Debug("connecting to MQTT broker", "broker", s.endpoint.URL(), "client_id", s.clientID)

	client := s.newClient(s.buildClientOptions())
	status, err := s.awaitConnect(ctx, client, client.Connect())
	s.notifyConnect(status)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.client = client
	s.connected = true
	s.inbox = make(chan inbound, s.inboxSize)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.deliver(s.inbox, s.stop, s.done)
	s.mu.Unlock()

	s.getLogger().Info("connected to MQTT broker", "broker", s.endpoint.URL())
	return nil
}

// awaitConnect waits for the CONNECT token, the connect timeout or ctx,
// whichever comes first.
func (s *Session) awaitConnect(ctx context.Context, client pahomqtt.Client, token pahomqtt.Token) (ConnectStatus, error) {
	timer := time.NewTimer(s.connectTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-timer.C:
		client.Disconnect(0)
		err := fmt.Errorf("%w: %w after %v", ErrConnectionFailed, ErrConnectionTimeout, s.connectTimeout)
		return ConnectStatus{Code: ReturnCodeUnknown, Err: err}, err
	case <-ctx.Done():
		client.Disconnect(0)
		err := fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
		return ConnectStatus{Code: ReturnCodeUnknown, Err: err}, err
	}

	code := ReturnCodeUnknown
	if rc, ok := token.(interface{ ReturnCode() byte }); ok {
		code = rc.ReturnCode()
	}

	if tokenErr := token.Error(); tokenErr != nil {
		err := fmt.Errorf("%w: %w", ErrConnectionFailed, tokenErr)
		return ConnectStatus{Code: code, Err: err}, err
	}
	if code == ReturnCodeUnknown {
		code = 0
	}
	return ConnectStatus{Code: code}, nil
}

// notifyConnect logs the attempt and forwards it to the OnConnect callback.
func (s *Session) notifyConnect(status ConnectStatus) {
	if status.Accepted() {
		s.getLogger().Debug("connect attempt accepted", "return_code", status.Code)
	} else {
		s.getLogger().Debug("connect attempt failed", "return_code", status.Code, "error", status.Err)
	}

	s.callbackMu.RLock()
	callback := s.onConnect
	s.callbackMu.RUnlock()
	if callback != nil {
		callback(status)
	}
}

// handleConnectionLost is called by paho when the broker drops the connection.
// No reconnect is attempted; the delivery goroutine keeps running until
// Disconnect so buffered messages are still handed out.
func (s *Session) handleConnectionLost(err error) {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()

	s.getLogger().Warn("MQTT connection lost", "broker", s.endpoint.URL(), "error", err)

	s.callbackMu.RLock()
	callback := s.onConnectionLost
	s.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// Disconnect stops the delivery goroutine and closes the connection.
//
// It is safe to call on a session that was never connected; that case is
// logged and ignored. When Disconnect returns no goroutine owned by the
// session is running.
func (s *Session) Disconnect() {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()
	s.disconnect()
}

// disconnect does the work of Disconnect. The caller holds connectMu.
func (s *Session) disconnect() {
	s.mu.Lock()
	if s.client == nil {
		s.mu.Unlock()
		s.getLogger().Debug("disconnect requested with no open MQTT session")
		return
	}
	client, sub, stop, done := s.client, s.sub, s.stop, s.done
	s.client = nil
	s.connected = false
	s.sub = nil
	s.inbox = nil
	s.stop = nil
	s.done = nil
	s.mu.Unlock()

	s.getLogger().Debug("disconnecting from MQTT broker", "broker", s.endpoint.URL())

	if sub != nil && client.IsConnected() {
		s.unsubscribe(client, sub.filter)
	}

	client.Disconnect(defaultDisconnectQuiesce)

	close(stop)
	<-done

	s.getLogger().Info("disconnected from MQTT broker", "broker", s.endpoint.URL())
}

// HealthCheck verifies the MQTT connection is alive.
//
// Returns:
//   - error: nil if healthy, ErrNotConnected when no session is open,
//     ErrConnectionClosed when the broker dropped it
func (s *Session) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	open := s.client != nil
	s.mu.Unlock()
	if !open {
		return ErrNotConnected
	}
	if !s.IsConnected() {
		return ErrConnectionClosed
	}

	return nil
}

// IsConnected returns the current connection state.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected && s.client != nil && s.client.IsConnected()
}

// SetOnConnect sets a callback invoked once per connection attempt with the
// broker's answer. It is meant for diagnostics, not control flow.
func (s *Session) SetOnConnect(callback func(ConnectStatus)) {
	s.callbackMu.Lock()
	s.onConnect = callback
	s.callbackMu.Unlock()
}

// SetOnConnectionLost sets a callback invoked when the broker drops an
// established connection.
func (s *Session) SetOnConnectionLost(callback func(err error)) {
	s.callbackMu.Lock()
	s.onConnectionLost = callback
	s.callbackMu.Unlock()
}

// SetLogger sets the diagnostics sink. A nil logger silences the session.
func (s *Session) SetLogger(logger Logger) {
	if logger == nil {
		logger = nopLogger{}
	}
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

func (s *Session) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

// nopLogger drops everything.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
