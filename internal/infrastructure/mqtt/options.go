package mqtt

import (
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connection constants.
const (
	// DefaultPort is the unencrypted MQTT port printers listen on.
	DefaultPort = 1883

	// defaultConnectTimeout is the maximum time to wait for the handshake
	// when the configuration does not set one.
	defaultConnectTimeout = 10 * time.Second

	// defaultSubscribeTimeout is the maximum time to wait for a SUBACK/UNSUBACK.
	defaultSubscribeTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending work on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 30 * time.Second

	// defaultInboxSize is the number of messages buffered between the paho
	// router and the delivery goroutine.
	defaultInboxSize = 64

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2
)

// Endpoint is the broker address of one printer. It is fixed for the
// lifetime of a Session.
type Endpoint struct {
	Host string
	Port int
}

// URL returns the paho broker URL for the endpoint.
func (e Endpoint) URL() string {
	port := e.Port
	if port == 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("tcp://%s:%d", e.Host, port)
}

// String implements fmt.Stringer.
func (e Endpoint) String() string {
	return e.URL()
}

// buildClientOptions creates paho MQTT options for the session.
//
// This configures:
//   - Broker URL (plain tcp, no TLS)
//   - Client ID for identification
//   - Clean session mode
//   - No automatic reconnect or connect retry: reconnecting is the caller's decision
//   - Ordered delivery so the inbox sees messages in arrival order
func (s *Session) buildClientOptions() *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(s.endpoint.URL())
	opts.SetClientID(s.clientID)

	// Clean session - start fresh on connect (no persistent session on broker)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetConnectTimeout(s.connectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetOrderMatters(true)

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		s.handleConnectionLost(err)
	})

	return opts
}
