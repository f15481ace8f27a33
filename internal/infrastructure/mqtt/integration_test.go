//go:build integration

package mqtt

import (
	"context"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/bambu-telemetry/internal/infrastructure/config"
)

// Integration tests against a real broker.
// These tests require a running MQTT broker at 127.0.0.1:1883 (e.g. mosquitto).
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

var integrationEndpoint = Endpoint{Host: "127.0.0.1", Port: 1883}

func integrationConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		ClientID:       clientID,
		QoS:            0,
		ConnectTimeout: 5 * time.Second,
	}
}

// publisher plays the printer: a plain paho client that publishes reports.
func publisher(t *testing.T) pahomqtt.Client {
	t.Helper()
	opts := pahomqtt.NewClientOptions().
		AddBroker(integrationEndpoint.URL()).
		SetClientID("bambuwatch-int-publisher")
	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Skipf("no broker at %s: %v", integrationEndpoint, token.Error())
	}
	t.Cleanup(func() { client.Disconnect(100) })
	return client
}

// TestIntegration_ReceivesReportsInOrder publishes a burst of reports and
// checks that the session hands them out in publish order.
func TestIntegration_ReceivesReportsInOrder(t *testing.T) {
	pub := publisher(t)

	s := NewSession(integrationEndpoint, integrationConfig("bambuwatch-int-order"))
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer s.Disconnect()

	serial := "01S00INTEGRATION"
	topic := Topics{}.DeviceReport(serial)

	var mu sync.Mutex
	var received []string
	done := make(chan struct{})
	const count = 20

	err := s.Subscribe(Topics{}.AllDeviceReports(), func(gotTopic string, payload []byte) error {
		if SerialFromTopic(gotTopic) != serial {
			t.Errorf("SerialFromTopic(%q) = %q, want %q", gotTopic, SerialFromTopic(gotTopic), serial)
		}
		mu.Lock()
		received = append(received, string(payload))
		if len(received) == count {
			close(done)
		}
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	want := make([]string, 0, count)
	for i := 0; i < count; i++ {
		payload := `{"print":{"sequence_id":"` + string(rune('a'+i)) + `"}}`
		want = append(want, payload)
		pub.Publish(topic, 0, false, payload).Wait()
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		mu.Lock()
		defer mu.Unlock()
		t.Fatalf("received %d of %d messages", len(received), count)
	}

	mu.Lock()
	defer mu.Unlock()
	for i := range want {
		if received[i] != want[i] {
			t.Errorf("message %d = %s, want %s", i, received[i], want[i])
		}
	}
}

// TestIntegration_ConnectRefusedPort verifies a dial failure is reported
// without leaving the session open.
func TestIntegration_ConnectRefusedPort(t *testing.T) {
	s := NewSession(Endpoint{Host: "127.0.0.1", Port: 1}, integrationConfig("bambuwatch-int-refused"))

	var status ConnectStatus
	s.SetOnConnect(func(st ConnectStatus) { status = st })

	if err := s.Connect(context.Background()); err == nil {
		s.Disconnect()
		t.Fatal("Connect() to a closed port succeeded")
	}
	if status.Accepted() {
		t.Error("ConnectStatus.Accepted() = true after a failed dial")
	}
	if s.IsConnected() {
		t.Error("IsConnected() = true after a failed dial")
	}
	s.Disconnect()
}
