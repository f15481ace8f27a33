package printer

import "errors"

// Domain errors for the printer package.
//
// Connection failures are not redefined here: Connect and Snapshot wrap the
// transport's errors, so callers check them with the mqtt sentinels:
//
//	if errors.Is(err, mqtt.ErrConnectionFailed) {
//	    // printer unreachable or handshake refused
//	}
var (
	// ErrInvalidPayload is reported when a message is not a JSON object.
	// It is logged by the delivery path and never returned to callers.
	ErrInvalidPayload = errors.New("printer: invalid payload")

	// ErrNoTransport is returned when a client was built without a transport.
	ErrNoTransport = errors.New("printer: no transport configured")
)
