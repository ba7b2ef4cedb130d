/*
Package chat contains the core logic of a live chat room session.

This file defines the Client struct, which owns the transport credentials and
hands out room sessions. It enforces the single-session invariant: one live
Room (one push connection, one token, one membership view) per room and host.
*/
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"sechat/internal/pkg/logx"
	"sechat/internal/pkg/transport"
)

const (
	// defaultPostRate spaces outbound mutating calls, staying under the
	// server throttle in normal operation.
	defaultPostRate = rate.Limit(2)

	// defaultPostBurst allows a short run of actions before pacing kicks in.
	defaultPostBurst = 5
)

// sessionConfig carries the collaborators and tunables a room is built with.
type sessionConfig struct {
	transport        Transport
	dialer           SocketDialer
	cookies          map[string]string
	watchdogInterval time.Duration
	postRate         rate.Limit
	postBurst        int
}

// Option customizes a Client.
type Option func(*sessionConfig)

// WithTransport replaces the HTTP collaborator. Used by embedders that need
// their own HTTP stack, and by tests.
func WithTransport(t Transport) Option {
	return func(cfg *sessionConfig) { cfg.transport = t }
}

// WithSocketDialer replaces the push-socket collaborator.
func WithSocketDialer(d SocketDialer) Option {
	return func(cfg *sessionConfig) { cfg.dialer = d }
}

// WithWatchdogInterval tunes the silence threshold after which the push
// channel is presumed dead and reconnected. The 30s default assumes the
// server emits traffic more often than that; it is a heuristic, not a
// protocol guarantee.
func WithWatchdogInterval(interval time.Duration) Option {
	return func(cfg *sessionConfig) { cfg.watchdogInterval = interval }
}

// WithPostPacing tunes the token bucket spacing outbound mutating calls.
func WithPostPacing(r rate.Limit, burst int) Option {
	return func(cfg *sessionConfig) {
		cfg.postRate = r
		cfg.postBurst = burst
	}
}

// roomKey identifies a room uniquely: ids repeat across hosts.
type roomKey struct {
	host Host
	id   int64
}

// Client owns the transport credentials of a logged-in chat user and the
// live room sessions opened with them.
type Client struct {
	// cfg holds the collaborators and tunables shared by all rooms.
	cfg sessionConfig

	// mu guards rooms.
	mu sync.Mutex

	// rooms holds the live sessions, keyed by host and room id.
	rooms map[roomKey]*Room

	// structured logger with client context.
	logger zerolog.Logger
}

// NewClient constructs a Client around an opaque credential cookie set
// obtained by the embedding application's login flow.
func NewClient(cookies map[string]string, opts ...Option) *Client {
	cfg := sessionConfig{
		transport:        transport.NewClient(),
		dialer:           gorillaDialer{},
		cookies:          copyCookies(cookies),
		watchdogInterval: defaultWatchdogInterval,
		postRate:         defaultPostRate,
		postBurst:        defaultPostBurst,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Client{
		cfg:    cfg,
		rooms:  make(map[roomKey]*Room),
		logger: logx.Logger().With().Str("component", "chat_client").Logger(),
	}
}

// JoinRoom opens a session in the given room, or returns the existing live
// session for it. One push connection, one anti-abuse token and one
// membership view exist per room at any time.
func (c *Client) JoinRoom(ctx context.Context, host Host, roomID int64) (*Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := roomKey{host: host, id: roomID}
	if room, ok := c.rooms[key]; ok && !room.isClosed() {
		c.logger.Debug().
			Str("chat_host", string(host)).
			Int64("room_id", roomID).
			Msg("Reusing existing room session.")
		return room, nil
	}

	room, err := newRoom(ctx, host, roomID, c.cfg)
	if err != nil {
		return nil, err
	}

	c.rooms[key] = room
	return room, nil
}

// Close leaves every live room session. Rooms already left are skipped.
func (c *Client) Close(ctx context.Context) {
	c.mu.Lock()
	rooms := make([]*Room, 0, len(c.rooms))
	for _, room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.rooms = make(map[roomKey]*Room)
	c.mu.Unlock()

	for _, room := range rooms {
		if room.isClosed() {
			continue
		}
		if err := room.Leave(ctx); err != nil {
			c.logger.Error().
				Err(err).
				Int64("room_id", room.RoomID()).
				Msg("Error while leaving room during client shutdown.")
		}
	}

	c.logger.Info().Msg("Chat client closed.")
}

// copyCookies snapshots the credential set so later mutations by the caller
// cannot affect in-flight sessions.
func copyCookies(cookies map[string]string) map[string]string {
	copied := make(map[string]string, len(cookies))
	for name, value := range cookies {
		copied[name] = value
	}
	return copied
}
