// Package lifecycle fans host lifecycle notifications out to subscribers.
package lifecycle

import (
	"fmt"
	"sync"

	"github.com/muurk/webcontrol/internal/logging"
	"go.uber.org/zap"
)

// Event is a host lifecycle transition.
type Event int

const (
	// Background means the host moved out of the foreground.
	Background Event = iota + 1
	// Foreground means the host became active again.
	Foreground
	// NetworkLost means the host lost connectivity.
	NetworkLost
	// NetworkRestored means connectivity came back.
	NetworkRestored
)

func (e Event) String() string {
	switch e {
	case Background:
		return "background"
	case Foreground:
		return "foreground"
	case NetworkLost:
		return "network-lost"
	case NetworkRestored:
		return "network-restored"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// ParseEvent converts a name produced by Event.String back into an Event.
func ParseEvent(s string) (Event, error) {
	for _, e := range []Event{Background, Foreground, NetworkLost, NetworkRestored} {
		if e.String() == s {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown lifecycle event %q", s)
}

// Dispatcher delivers events to subscribers in subscription order.
type Dispatcher struct {
	mu     sync.Mutex
	nextID int
	subs   []subscription
}

type subscription struct {
	id int
	fn func(Event)
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe registers fn and returns a function that removes it. The
// returned function may be called more than once.
func (d *Dispatcher) Subscribe(fn func(Event)) (unsubscribe func()) {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subs = append(d.subs, subscription{id: id, fn: fn})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, s := range d.subs {
			if s.id == id {
				d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
				return
			}
		}
	}
}

// Emit calls every subscriber synchronously. Subscribers may subscribe or
// unsubscribe from within the callback.
func (d *Dispatcher) Emit(e Event) {
	d.mu.Lock()
	subs := append([]subscription(nil), d.subs...)
	d.mu.Unlock()

	logging.Info("Lifecycle event", zap.String("event", e.String()), zap.Int("subscribers", len(subs)))

	for _, s := range subs {
		s.fn(e)
	}
}
