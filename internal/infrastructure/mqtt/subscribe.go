package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// MessageHandler is the callback signature for received messages.
//
// Handlers run on the session's delivery goroutine, one at a time, in
// arrival order. They should not block for extended periods as this holds
// up every later message.
//
// Parameters:
//   - topic: The topic the message was received on (wildcards expanded)
//   - payload: The raw message payload (typically JSON)
//
// Returns:
//   - error: Logged; never stops delivery
type MessageHandler func(topic string, payload []byte) error

// subscription holds the single active filter of a session.
type subscription struct {
	filter  string
	handler MessageHandler
}

// Subscribe registers interest in a topic space.
//
// A session holds at most one subscription: subscribing again replaces the
// handler and, if the filter changed, unsubscribes the previous filter.
//
// Topics can include MQTT wildcards:
//   - + (single-level): "device/+/report" matches every printer's report topic
//   - # (multi-level): "device/#" matches everything a printer publishes
//
// Parameters:
//   - filter: The topic filter to subscribe to
//   - handler: Callback invoked once per inbound message
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (s *Session) Subscribe(filter string, handler MessageHandler) error {
	if filter == "" {
		return ErrInvalidTopic
	}
	if s.qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	s.mu.Lock()
	if s.client == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if !s.connected {
		s.mu.Unlock()
		return ErrConnectionClosed
	}
	client, inbox, stop := s.client, s.inbox, s.stop
	previous := s.sub
	s.sub = &subscription{filter: filter, handler: handler}
	s.mu.Unlock()

	s.getLogger().Debug("subscribing", "topic", filter, "qos", s.qos)

	token := client.Subscribe(filter, s.qos, s.enqueue(inbox, stop))
	if !token.WaitTimeout(defaultSubscribeTimeout) {
		s.restoreSubscription(previous)
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultSubscribeTimeout)
	}
	if err := token.Error(); err != nil {
		s.restoreSubscription(previous)
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	if previous != nil && previous.filter != filter {
		s.unsubscribe(client, previous.filter)
	}

	s.getLogger().Info("subscribed", "topic", filter)
	return nil
}

// restoreSubscription puts back the subscription that a failed Subscribe replaced.
func (s *Session) restoreSubscription(previous *subscription) {
	s.mu.Lock()
	s.sub = previous
	s.mu.Unlock()
}

// unsubscribe removes filter from the broker. Failures are logged only:
// the filter is no longer routed to a handler either way.
func (s *Session) unsubscribe(client pahomqtt.Client, filter string) {
	token := client.Unsubscribe(filter)
	if !token.WaitTimeout(defaultSubscribeTimeout) {
		s.getLogger().Warn("unsubscribe timed out", "topic", filter)
	} else if err := token.Error(); err != nil {
		s.getLogger().Warn("unsubscribe failed", "topic", filter, "error", err)
	}
}

// enqueue returns the paho callback that hands messages to the delivery
// goroutine. It blocks while the inbox is full, which applies back-pressure
// to paho's router, and gives up once the session is stopping.
func (s *Session) enqueue(inbox chan<- inbound, stop <-chan struct{}) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		select {
		case inbox <- inbound{topic: msg.Topic(), payload: msg.Payload()}:
		case <-stop:
		}
	}
}

// deliver is the delivery goroutine. It owns all handler invocations.
func (s *Session) deliver(inbox <-chan inbound, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		case msg := <-inbox:
			s.dispatch(msg)
		}
	}
}

// dispatch runs the current handler with panic recovery and error logging.
func (s *Session) dispatch(msg inbound) {
	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()
	if sub == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.getLogger().Error("MQTT handler panic recovered",
				"topic", msg.topic,
				"panic", r,
			)
		}
	}()

	if err := sub.handler(msg.topic, msg.payload); err != nil {
		s.getLogger().Warn("MQTT handler returned error",
			"topic", msg.topic,
			"error", err,
		)
	}
}
