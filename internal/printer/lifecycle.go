package printer

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// Lifecycle states reported by Client.Status.
const (
	// StatusIdle means no session is open.
	StatusIdle = "idle"
	// StatusConnected means a session is open but no report was merged yet.
	StatusConnected = "connected"
	// StatusTracking means a session is open and reports are being merged.
	StatusTracking = "tracking"
	// StatusLost means the broker dropped the session. Disconnect or
	// Connect leaves it.
	StatusLost = "lost"
)

const (
	eventConnect    = "connect"
	eventReport     = "report"
	eventDisconnect = "disconnect"
	eventLost       = "lost"
)

// lifecycle is the client state machine. The underlying FSM is safe for
// concurrent use.
type lifecycle struct {
	*fsm.FSM
}

// newLifecycle builds the machine in StatusIdle. onEnter is called after
// every transition with the source and destination states.
func newLifecycle(onEnter func(src, dst string)) *lifecycle {
	events := fsm.Events{
		{Name: eventConnect, Src: []string{StatusIdle, StatusConnected, StatusTracking, StatusLost}, Dst: StatusConnected},
		{Name: eventReport, Src: []string{StatusConnected}, Dst: StatusTracking},
		{Name: eventLost, Src: []string{StatusConnected, StatusTracking}, Dst: StatusLost},
		{Name: eventDisconnect, Src: []string{StatusConnected, StatusTracking, StatusLost}, Dst: StatusIdle},
	}

	callbacks := fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			if onEnter != nil {
				onEnter(e.Src, e.Dst)
			}
		},
	}

	return &lifecycle{FSM: fsm.NewFSM(StatusIdle, events, callbacks)}
}

// fire triggers event if the current state allows it. Self-transitions
// (a reconnect while connected) are not errors.
func (l *lifecycle) fire(event string) error {
	if !l.Can(event) {
		return nil
	}
	err := l.Event(context.Background(), event)
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return err
}
