/*
Package chat contains the core logic of a live chat room session.

This file implements the event dispatcher: a kind-indexed listener registry
and the worker pool that delivers decoded events. Each listener invocation is
an independent goroutine, so a slow or panicking listener can neither stall
frame reception nor affect other listeners.
*/
package chat

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"sechat/internal/app/chat/events"
)

// dispatcher maps event kinds to their registered listeners and fans decoded
// events out to them.
type dispatcher struct {
	// mu guards listeners and closed.
	mu sync.RWMutex

	// listeners holds, per kind, the registered callbacks in registration
	// order. Duplicate registrations are kept: the same listener registered
	// twice is delivered twice.
	listeners map[events.Kind][]func(events.Event)

	// closed stops new deliveries once the session shuts down.
	closed bool

	// wg tracks in-flight listener invocations.
	wg sync.WaitGroup

	// structured logger with dispatcher context.
	logger zerolog.Logger
}

// newDispatcher constructs an empty registry.
func newDispatcher(logger zerolog.Logger) *dispatcher {
	return &dispatcher{
		listeners: make(map[events.Kind][]func(events.Event)),
		logger:    logger.With().Str("component", "dispatcher").Logger(),
	}
}

// addListener registers fn for the given kind. Registration only affects
// events dispatched afterwards; there is no replay.
func (d *dispatcher) addListener(kind events.Kind, fn func(events.Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.listeners[kind] = append(d.listeners[kind], fn)
}

// dispatch decodes each raw record of one frame and hands the typed event to
// every listener registered for its kind, in frame order. Delivery itself is
// asynchronous: listeners of different kinds have no relative-order guarantee.
func (d *dispatcher) dispatch(records []json.RawMessage) {
	for _, record := range records {
		event, err := events.Decode(record)
		if err != nil {
			d.logger.Debug().Err(err).Msg("Skipping undecodable event record.")
			continue
		}

		d.mu.RLock()
		if d.closed {
			d.mu.RUnlock()
			return
		}
		for _, fn := range d.listeners[event.EventKind()] {
			d.wg.Add(1)
			go d.deliver(fn, event)
		}
		d.mu.RUnlock()
	}
}

// deliver invokes one listener with panic isolation. A panicking listener is
// logged and never affects other listeners or the receive loop.
func (d *dispatcher) deliver(fn func(events.Event), event events.Event) {
	defer d.wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error().
				Interface("panic", rec).
				Str("event_kind", event.EventKind().String()).
				Msg("Event listener panicked. Other listeners are unaffected.")
		}
	}()

	fn(event)
}

// shutdown stops new deliveries and waits for in-flight ones to finish.
func (d *dispatcher) shutdown() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
}

// On registers listener for the event type T on the given room. The kind is
// derived from T itself, so a listener can never receive an event of another
// kind and no cast is exposed to application code. Registering the same
// listener twice delivers every matching event twice. Only events arriving
// after registration are delivered.
func On[T events.Event](r *Room, listener func(T)) {
	var zero T

	r.dispatcher.addListener(zero.EventKind(), func(event events.Event) {
		typed, ok := event.(T)
		if !ok {
			return
		}
		listener(typed)
	})
}
