package printer

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/bambu-telemetry/internal/infrastructure/mqtt"
)

// fakeTransport implements Transport in memory. Messages are delivered
// synchronously on the caller's goroutine, one at a time.
type fakeTransport struct {
	mu           sync.Mutex
	deliverMu    sync.Mutex
	connectErr   error
	subscribeErr error
	connected    bool
	filter       string
	handler      mqtt.MessageHandler
	connects     int
	disconnects  int

	// onSubscribe runs in its own goroutine after a successful Subscribe.
	onSubscribe func(f *fakeTransport)
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		f.connected = false
		return f.connectErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) Subscribe(filter string, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	if !f.connected {
		f.mu.Unlock()
		return mqtt.ErrNotConnected
	}
	if f.subscribeErr != nil {
		f.mu.Unlock()
		return f.subscribeErr
	}
	f.filter = filter
	f.handler = handler
	hook := f.onSubscribe
	f.mu.Unlock()

	if hook != nil {
		go hook(f)
	}
	return nil
}

func (f *fakeTransport) Disconnect() {
	// Wait for an in-flight delivery like the real session does.
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected && f.handler == nil {
		return
	}
	f.connected = false
	f.handler = nil
	f.disconnects++
}

func (f *fakeTransport) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !f.isConnected() {
		return mqtt.ErrNotConnected
	}
	return nil
}

// deliver hands one message to the subscribed handler. It returns the
// handler's error, or nil when nothing is subscribed.
func (f *fakeTransport) deliver(topic, payload string) error {
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()

	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler == nil {
		return nil
	}
	return handler(topic, []byte(payload))
}

func (f *fakeTransport) isConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

// newTestClient returns a client over a fake transport with a short
// snapshot window and a fixed clock.
func newTestClient(wait time.Duration) (*Client, *fakeTransport, *Metrics) {
	transport := &fakeTransport{}
	metrics := NewMetrics(nil)
	c := NewClient(transport, Options{SnapshotWait: wait, Metrics: metrics})
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return c, transport, metrics
}

const reportTopic = "device/01S00C000000001/report"
