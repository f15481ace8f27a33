// Package mqtt provides the transport session to a printer's MQTT broker.
//
// This package manages:
//   - One connection to one broker endpoint (plain tcp, port 1883)
//   - A single topic subscription with wildcard support
//   - Serialized, in-order delivery of inbound messages to a handler
//   - Connection diagnostics (connect status, connection lost)
//
// # Architecture
//
// paho's router pushes each message onto a buffered channel; one delivery
// goroutine, started by Connect and joined by Disconnect, drains it and calls
// the handler. Handlers therefore never run concurrently.
//
//	printer broker → paho router → inbox chan → delivery goroutine → handler
//
// # Reconnection
//
// Automatic reconnect is disabled. When the broker drops the connection the
// session reports it through SetOnConnectionLost and stays disconnected until
// the caller connects again.
//
// # Usage
//
//	session := mqtt.NewSession(mqtt.Endpoint{Host: "192.168.1.50", Port: 1883}, cfg.MQTT)
//	if err := session.Connect(ctx); err != nil {
//	    return err
//	}
//	defer session.Disconnect()
//
//	err := session.Subscribe(mqtt.Topics{}.AllDevices(),
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
