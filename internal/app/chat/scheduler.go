/*
Package chat contains the core logic of a live chat room session.

This file implements the serialized action timeline and the background
maintenance schedule. All mutating actions and all periodic jobs (anti-abuse
token refresh, pingable-roster resync, watchdog) run on one single-threaded
loop, so the token used by an in-flight action is never refreshed mid-call
and jobs never race each other. The push channel's receive loop and the
listener worker pool stay unaffected by long-running actions.
*/
package chat

import (
	"context"
	"time"

	"sechat/internal/pkg/errs"
)

const (
	// fkeyRefreshInterval is how often the anti-abuse token is re-scraped.
	fkeyRefreshInterval = time.Hour

	// pingableSyncInterval is how often the pingable roster is replaced
	// wholesale. The roster is never merged incrementally with membership
	// events.
	pingableSyncInterval = 24 * time.Hour

	// defaultWatchdogInterval is the default silence threshold of the push
	// channel watchdog.
	defaultWatchdogInterval = 30 * time.Second

	// taskQueueBuffer sizes the action timeline queue.
	taskQueueBuffer = 32
)

// task is one unit of work on the serialized action timeline.
type task struct {
	name string
	run  func()
}

// runActionLoop consumes the task queue until the room is closed. The queue
// channel is closed exactly once by close(); every task enqueued before that
// point still runs, so no submitter is left waiting.
func (r *Room) runActionLoop() {
	defer r.wg.Done()

	for t := range r.tasks {
		t.run()
	}
}

// enqueue places a task on the action timeline, refusing once the session is
// closed.
func (r *Room) enqueue(t task) error {
	r.taskMu.RLock()
	defer r.taskMu.RUnlock()

	if r.closed {
		return errs.NewError(errs.ErrRoomClosed)
	}

	r.tasks <- t
	return nil
}

// submit runs fn on the room's serialized action timeline and blocks until
// its result is available. Cancelling ctx before the task is picked up does
// not withdraw it: once enqueued, the action runs to completion or failure
// and the caller merely stops waiting for it.
func submit[T any](ctx context.Context, r *Room, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	type outcome struct {
		value T
		err   error
	}
	results := make(chan outcome, 1)

	err := r.enqueue(task{
		name: name,
		run: func() {
			value, err := fn(ctx)
			results <- outcome{value: value, err: err}
		},
	})
	if err != nil {
		return zero, err
	}

	out := <-results
	return out.value, out.err
}

// scheduleJob runs fn on the action timeline every interval until the session
// closes. A failing run is logged and the schedule continues with the next
// tick.
func (r *Room) scheduleJob(name string, interval time.Duration, fn func(ctx context.Context) error) {
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				job := task{
					name: name,
					run: func() {
						if err := fn(context.Background()); err != nil {
							r.logger.Error().
								Err(err).
								Str("job", name).
								Msg("Background job failed. Schedule continues.")
						}
					},
				}
				if err := r.enqueue(job); err != nil {
					return
				}

			case <-r.done:
				return
			}
		}
	}()
}

// refreshFKey fetches the room page and extracts the anti-abuse token that
// must accompany every mutating call. The new token only affects calls issued
// after it is stored.
func (r *Room) refreshFKey(ctx context.Context) error {
	resp, err := r.transport.Get(ctx, r.chatURL("/rooms/%d", r.id), r.cookies)
	if err != nil {
		return err
	}
	if resp.Status != 200 {
		return errs.NewError(errs.ErrOperationRejected, resp.BodyString()).WithStatus(resp.Status)
	}

	doc, err := resp.Document()
	if err != nil {
		return err
	}

	fkey, exists := doc.Find("#fkey").Attr("value")
	if !exists || fkey == "" {
		return errs.NewError(errs.ErrMalformedResponse, "room page carries no fkey field")
	}

	r.setFKey(fkey)
	r.logger.Debug().Msg("New fkey retrieved.")
	return nil
}

// watchdogTick reboots the push channel when it has been silent for longer
// than the watchdog interval. Prolonged silence is treated as a presumed dead
// connection; the transport does not reliably raise a close callback on
// silent failure, so this tick is the sole recovery mechanism.
func (r *Room) watchdogTick(ctx context.Context) error {
	idle := r.channel.idleFor()
	if idle <= r.watchdogInterval {
		return nil
	}

	r.logger.Debug().
		Dur("idle", idle).
		Msg("Rebooting the websocket connection after inactivity.")

	r.channel.closeConn()
	return r.channel.open(ctx)
}
