package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectionFailed is returned when a connection attempt fails:
	// the broker is unreachable, refuses the handshake, or does not answer in time.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrConnectionTimeout is wrapped together with ErrConnectionFailed when
	// the handshake exceeds the configured connect timeout.
	ErrConnectionTimeout = errors.New("mqtt: connection timed out")

	// ErrConnectionClosed is returned for operations attempted on a session
	// whose connection was dropped by the broker and not yet reconnected.
	ErrConnectionClosed = errors.New("mqtt: connection closed")

	// ErrUnsupportedFeature is reserved for capabilities the session does not implement.
	ErrUnsupportedFeature = errors.New("mqtt: unsupported feature")

	// ErrNotConnected is returned when attempting operations on a disconnected session.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	// Valid QoS levels are 0, 1, or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned when an empty topic filter is provided.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
