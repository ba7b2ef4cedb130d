/*
Package chat contains the core logic of a live chat room session: the push
channel, event dispatch, throttle-aware actions, and background maintenance.

This file defines the Room struct, the session façade handed to application
code. A Room owns exactly one push connection, one anti-abuse token and one
membership view; all mutating actions and maintenance jobs run on a single
serialized timeline so they never interleave destructively.
*/
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"sechat/internal/app/chat/events"
	"sechat/internal/pkg/errs"
	"sechat/internal/pkg/logx"
	"sechat/internal/pkg/transport"
)

// successMarker is the acknowledgment body the server returns for accepted
// message actions.
const successMarker = "ok"

// Transport is the HTTP collaborator of the session. Get carries alternating
// key/value query parameters; Post carries a form-encoded body.
type Transport interface {
	Get(ctx context.Context, rawURL string, cookies map[string]string, params ...string) (*transport.Response, error)
	Post(ctx context.Context, rawURL string, cookies map[string]string, fields url.Values) (*transport.Response, error)
}

// Room represents one live session in a single chat room.
type Room struct {
	// host is the chat server this room lives on.
	host Host

	// id is the room identifier, unique per host only.
	id int64

	// transport issues all HTTP calls of the session.
	transport Transport

	// cookies is the opaque credential set attached to every HTTP call.
	// Immutable for the lifetime of the session.
	cookies map[string]string

	// fkeyMu guards fkey, which is refreshed hourly by a maintenance job
	// and read by actions and queries.
	fkeyMu sync.RWMutex
	fkey   string

	// presence is the live membership view of the room.
	presence *presenceTracker

	// rosterMu guards pingableIDs, replaced wholesale by the daily resync.
	rosterMu    sync.RWMutex
	pingableIDs []int64

	// dispatcher delivers decoded events to registered listeners.
	dispatcher *dispatcher

	// channel owns the push-socket connection.
	channel *pushChannel

	// tasks feeds the serialized action timeline. taskMu and closed guard
	// enqueueing against shutdown; the channel is closed exactly once.
	tasks  chan task
	taskMu sync.RWMutex
	closed bool

	// done signals ticker goroutines to stop.
	done chan struct{}

	// wg tracks the action loop and the ticker goroutines.
	wg sync.WaitGroup

	// leaveOnce makes Leave idempotent; leaveErr records the first outcome.
	leaveOnce sync.Once
	leaveErr  error

	// closeOnce makes the internal teardown idempotent.
	closeOnce sync.Once

	// pacer spaces outbound mutating calls to stay under the server throttle.
	pacer *rate.Limiter

	// watchdogInterval is the silence threshold after which the push channel
	// is presumed dead and reconnected. A heuristic, not a protocol
	// guarantee: the server is expected to emit traffic more often than this.
	watchdogInterval time.Duration

	// structured logger with room context.
	logger zerolog.Logger
}

// newRoom constructs a Room, performs the initial synchronous setup (token
// fetch, roster sync, membership scrape, push-channel connect) and schedules
// the periodic maintenance jobs. Any setup failure tears the session down
// and is returned to the caller.
func newRoom(ctx context.Context, host Host, roomID int64, cfg sessionConfig) (*Room, error) {
	roomLogger := logx.Logger().With().
		Str("chat_host", string(host)).
		Int64("room_id", roomID).
		Logger()

	r := &Room{
		host:             host,
		id:               roomID,
		transport:        cfg.transport,
		cookies:          cfg.cookies,
		presence:         newPresenceTracker(),
		tasks:            make(chan task, taskQueueBuffer),
		done:             make(chan struct{}),
		pacer:            rate.NewLimiter(cfg.postRate, cfg.postBurst),
		watchdogInterval: cfg.watchdogInterval,
		logger:           roomLogger,
	}
	r.dispatcher = newDispatcher(roomLogger)
	r.channel = newPushChannel(r, cfg.dialer)

	// Membership listeners are registered before application code can see the
	// room, so they observe every entered/left event.
	On(r, func(e events.UserEntered) { r.presence.add(e.UserID) })
	On(r, func(e events.UserLeft) { r.presence.remove(e.UserID) })

	r.wg.Add(1)
	go r.runActionLoop()

	if err := r.setup(ctx); err != nil {
		r.close()
		return nil, err
	}

	r.scheduleJob("fkey_refresh", fkeyRefreshInterval, r.refreshFKey)
	r.scheduleJob("pingable_sync", pingableSyncInterval, r.syncPingableUsers)
	r.scheduleJob("watchdog", r.watchdogInterval, r.watchdogTick)

	r.logger.Info().Msg("Room session established.")
	return r, nil
}

// setup runs the one-time initialization: the first token fetch and roster
// sync, the membership scrape, and the push-channel connect.
func (r *Room) setup(ctx context.Context) error {
	if err := r.refreshFKey(ctx); err != nil {
		return err
	}
	if err := r.syncPingableUsers(ctx); err != nil {
		return err
	}
	if err := r.syncCurrentUsers(ctx); err != nil {
		return err
	}
	return r.channel.open(ctx)
}

// RoomID returns the id of this room. It must be combined with the host to
// reference the room uniquely: ids repeat across hosts.
func (r *Room) RoomID() int64 {
	return r.id
}

// Host returns the chat server this room lives on.
func (r *Room) Host() Host {
	return r.host
}

// chatURL builds an absolute URL under the room's chat server.
func (r *Room) chatURL(format string, args ...any) string {
	return r.host.ChatBaseURL() + fmt.Sprintf(format, args...)
}

// currentFKey returns the anti-abuse token currently in force. An action that
// already read the token is unaffected by a concurrent refresh; the new token
// only applies to subsequent calls.
func (r *Room) currentFKey() string {
	r.fkeyMu.RLock()
	defer r.fkeyMu.RUnlock()
	return r.fkey
}

func (r *Room) setFKey(fkey string) {
	r.fkeyMu.Lock()
	defer r.fkeyMu.Unlock()
	r.fkey = fkey
}

// Send posts the given message to the room and returns the id of the new
// message. The call runs on the room's serialized action timeline.
func (r *Room) Send(ctx context.Context, text string) (int64, error) {
	r.logger.Debug().Str("text", text).Msg("Task added - sending message.")

	return submit(ctx, r, "send", func(ctx context.Context) (int64, error) {
		result, err := r.executePost(ctx, r.chatURL("/chats/%d/messages/new", r.id), "text", text)
		if err != nil {
			return 0, err
		}

		var payload struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(result, &payload); err != nil {
			return 0, errs.Wrap(errs.ErrMalformedResponse, err, string(result))
		}

		r.logger.Debug().Int64("message_id", payload.ID).Msg("Message sent.")
		return payload.ID, nil
	})
}

// ReplyTo sends a reply to the message with the given id. A reply is a
// regular message carrying the :{messageId} reference prefix.
func (r *Room) ReplyTo(ctx context.Context, messageID int64, text string) (int64, error) {
	return r.Send(ctx, fmt.Sprintf(":%d %s", messageID, text))
}

// Edit replaces the content of the message with the given id and returns the
// same id on success.
func (r *Room) Edit(ctx context.Context, messageID int64, text string) (int64, error) {
	r.logger.Debug().Int64("message_id", messageID).Msg("Task added - editing message.")

	return submit(ctx, r, "edit", func(ctx context.Context) (int64, error) {
		result, err := r.executePost(ctx, r.chatURL("/messages/%d", messageID), "text", text)
		if err != nil {
			return 0, err
		}
		if err := r.expectAck(result, "edit", messageID); err != nil {
			return 0, err
		}
		return messageID, nil
	})
}

// Delete removes the message with the given id.
func (r *Room) Delete(ctx context.Context, messageID int64) error {
	r.logger.Debug().Int64("message_id", messageID).Msg("Task added - deleting message.")

	_, err := submit(ctx, r, "delete", func(ctx context.Context) (struct{}, error) {
		result, postErr := r.executePost(ctx, r.chatURL("/messages/%d/delete", messageID))
		if postErr != nil {
			return struct{}{}, postErr
		}
		return struct{}{}, r.expectAck(result, "delete", messageID)
	})
	return err
}

// ToggleStar stars the message with the given id, or removes the logged-in
// user's star if one is already set.
func (r *Room) ToggleStar(ctx context.Context, messageID int64) error {
	r.logger.Debug().Int64("message_id", messageID).Msg("Task added - starring/unstarring message.")

	_, err := submit(ctx, r, "toggle_star", func(ctx context.Context) (struct{}, error) {
		result, postErr := r.executePost(ctx, r.chatURL("/messages/%d/star", messageID))
		if postErr != nil {
			return struct{}{}, postErr
		}
		return struct{}{}, r.expectAck(result, "star/unstar", messageID)
	})
	return err
}

// TogglePin pins the message with the given id to the room, or unpins it if
// it is already pinned. Pinning requires room-owner privileges.
func (r *Room) TogglePin(ctx context.Context, messageID int64) error {
	r.logger.Debug().Int64("message_id", messageID).Msg("Task added - pinning/unpinning message.")

	_, err := submit(ctx, r, "toggle_pin", func(ctx context.Context) (struct{}, error) {
		result, postErr := r.executePost(ctx, r.chatURL("/messages/%d/owner-star", messageID))
		if postErr != nil {
			return struct{}{}, postErr
		}
		return struct{}{}, r.expectAck(result, "pin/unpin", messageID)
	})
	return err
}

// expectAck validates the server acknowledgment body for a message action.
// Anything other than the literal success marker fails the action with the
// raw server response as diagnostic.
func (r *Room) expectAck(result json.RawMessage, action string, messageID int64) error {
	var ack string
	if err := json.Unmarshal(result, &ack); err != nil || ack != successMarker {
		r.logger.Warn().
			Str("action", action).
			Int64("message_id", messageID).
			Str("raw_result", string(result)).
			Msg("Chat action was not acknowledged.")
		return errs.NewError(errs.ErrOperationRejected, string(result))
	}
	return nil
}

// Leave causes the logged-in user to leave the room and tears the session
// down. Calling Leave again is a no-op; both calls return the outcome of the
// first, so the leave action is posted at most once.
func (r *Room) Leave(ctx context.Context) error {
	r.leaveOnce.Do(func() {
		r.logger.Debug().Msg("Leaving room.")

		_, err := submit(ctx, r, "leave", func(ctx context.Context) (struct{}, error) {
			_, postErr := r.executePost(ctx, r.chatURL("/chats/leave/%d", r.id), "quiet", "true")
			return struct{}{}, postErr
		})
		r.leaveErr = err
		r.close()
	})
	return r.leaveErr
}

// RoomThumbs is the summary card of a chat room.
type RoomThumbs struct {
	ID          int64
	Name        string
	Description string
	Favorite    bool
	Tags        []string
}

// Thumbs fetches the summary card of this room: name, description, favorite
// flag and tags.
func (r *Room) Thumbs(ctx context.Context) (RoomThumbs, error) {
	resp, err := r.transport.Get(ctx, r.chatURL("/rooms/thumbs/%d", r.id), r.cookies)
	if err != nil {
		return RoomThumbs{}, err
	}
	if resp.Status != http.StatusOK {
		return RoomThumbs{}, errs.NewError(errs.ErrOperationRejected, resp.BodyString()).WithStatus(resp.Status)
	}

	var payload struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		IsFavorite  bool   `json:"isFavorite"`
		Tags        string `json:"tags"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return RoomThumbs{}, errs.Wrap(errs.ErrMalformedResponse, err, resp.BodyString())
	}

	return RoomThumbs{
		ID:          payload.ID,
		Name:        payload.Name,
		Description: payload.Description,
		Favorite:    payload.IsFavorite,
		Tags:        parseThumbTags(payload.Tags),
	}, nil
}

// parseThumbTags extracts the tag names out of the anchor markup the thumbs
// endpoint returns in its "tags" field.
func parseThumbTags(markup string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	var tags []string
	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		if tag := strings.TrimSpace(sel.Text()); tag != "" {
			tags = append(tags, tag)
		}
	})
	return tags
}

// isClosed reports whether the session has been torn down.
func (r *Room) isClosed() bool {
	r.taskMu.RLock()
	defer r.taskMu.RUnlock()
	return r.closed
}

// close tears the session down: it stops the maintenance schedule and the
// action loop, waits out in-flight listener deliveries, then closes the push
// channel. Safe to call multiple times and when the channel is already
// disconnected.
func (r *Room) close() {
	r.closeOnce.Do(func() {
		r.taskMu.Lock()
		r.closed = true
		close(r.tasks)
		r.taskMu.Unlock()

		close(r.done)
		r.wg.Wait()

		r.dispatcher.shutdown()
		r.channel.shutdown()

		r.logger.Info().Msg("Room session shut down.")
	})
}
