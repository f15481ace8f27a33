package printer

import (
	"time"

	"github.com/nerrad567/bambu-telemetry/internal/infrastructure/mqtt"
)

// Device is an immutable view of the printer after one report was merged.
type Device struct {
	// State is a deep copy of the merged state at the time of the update.
	State State `json:"state"`

	// Topic the triggering report arrived on.
	Topic string `json:"topic"`

	// Serial is taken from the topic (device/{serial}/...). Empty when the
	// topic does not follow that layout.
	Serial string `json:"serial,omitempty"`

	// UpdatedAt is when the report was merged (UTC).
	UpdatedAt time.Time `json:"updated_at"`

	// Updates counts the reports merged since the client was created.
	Updates uint64 `json:"updates"`
}

// newDevice snapshots state. The caller must hold the lock that guards state.
func newDevice(state State, topic string, updates uint64, at time.Time) *Device {
	return &Device{
		State:     state.Clone(),
		Topic:     topic,
		Serial:    mqtt.SerialFromTopic(topic),
		UpdatedAt: at.UTC(),
		Updates:   updates,
	}
}

// Field returns a top-level field of the state.
func (d *Device) Field(name string) (any, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d.State[name]
	return v, ok
}
