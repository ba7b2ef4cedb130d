/*
Package chat contains the core logic of a live chat room session.

This file implements the push channel: the websocket connection over which
the server streams room events. The channel is an explicit state machine
(disconnected, connecting, connected, closed) driven by the watchdog tick;
socket-level errors are logged, never fatal, because the transport does not
reliably raise a close callback on silent failure.
*/
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"sechat/internal/pkg/errs"
)

// channelState enumerates the push channel lifecycle. closed is terminal and
// entered only by session shutdown.
type channelState int

const (
	stateDisconnected channelState = iota
	stateConnecting
	stateConnected
	stateClosed
)

// SocketConn is an open push-socket connection.
type SocketConn interface {
	// ReadMessage blocks until the next frame arrives.
	ReadMessage() ([]byte, error)

	// Close closes the connection. Safe to call more than once.
	Close() error
}

// SocketDialer opens push-socket connections. The origin header must match
// the chat host or the server refuses the upgrade.
type SocketDialer interface {
	Dial(ctx context.Context, rawURL string, origin string) (SocketConn, error)
}

// pushChannel owns the push-socket connection of one room session.
type pushChannel struct {
	room   *Room
	dialer SocketDialer

	// mu guards state and conn.
	mu    sync.Mutex
	state channelState
	conn  SocketConn

	// lastActivity is the unix-nano timestamp of the most recent frame,
	// written by the receive loop and read by the watchdog.
	lastActivity atomic.Int64

	// structured logger with channel context.
	logger zerolog.Logger
}

// newPushChannel constructs the channel in the disconnected state.
func newPushChannel(room *Room, dialer SocketDialer) *pushChannel {
	p := &pushChannel{
		room:   room,
		dialer: dialer,
		logger: room.logger.With().Str("component", "push_channel").Logger(),
	}
	p.lastActivity.Store(time.Now().UnixNano())
	return p
}

// open requests a one-time socket URL, dials it with the chat host as origin,
// and starts the receive loop. A no-op when already connected or connecting;
// an error when the session is closed.
func (p *pushChannel) open(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case stateClosed:
		p.mu.Unlock()
		return errs.NewError(errs.ErrRoomClosed)
	case stateConnected, stateConnecting:
		p.mu.Unlock()
		return nil
	}
	p.state = stateConnecting
	p.mu.Unlock()

	socketURL, err := p.room.socketURL(ctx)
	if err != nil {
		p.setDisconnected()
		return err
	}

	p.logger.Debug().Str("socket_url", socketURL).Msg("Connecting to chat websocket.")

	conn, err := p.dialer.Dial(ctx, socketURL, p.room.host.ChatBaseURL())
	if err != nil {
		p.setDisconnected()
		return errs.Wrap(errs.ErrSocketConnectFailed, err)
	}

	p.mu.Lock()
	if p.state == stateClosed {
		p.mu.Unlock()
		conn.Close()
		return errs.NewError(errs.ErrRoomClosed)
	}
	p.conn = conn
	p.state = stateConnected
	p.mu.Unlock()

	p.lastActivity.Store(time.Now().UnixNano())

	go p.receiveLoop(conn)
	return nil
}

// receiveLoop reads frames until the connection fails or is closed. Its only
// job is to decode frames and hand records to the dispatcher quickly; actual
// listener work happens on the worker pool.
func (p *pushChannel) receiveLoop(conn SocketConn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			p.mu.Lock()
			stale := p.conn != conn
			if !stale && p.state == stateConnected {
				p.state = stateDisconnected
				p.conn = nil
			}
			p.mu.Unlock()

			// Recovery is the watchdog's job, not the read error's.
			if !stale {
				p.logger.Debug().Err(err).Msg("Websocket read loop ended.")
			}
			return
		}

		p.lastActivity.Store(time.Now().UnixNano())
		p.handleFrame(data)
	}
}

// handleFrame extracts the raw event records addressed to this room and
// forwards them to the dispatcher. Frames may reference other rooms; those
// entries are ignored.
func (p *pushChannel) handleFrame(data []byte) {
	var frame map[string]json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil {
		p.logger.Warn().Err(err).Msg("Discarding unparseable websocket frame.")
		return
	}

	roomPayload, ok := frame[fmt.Sprintf("r%d", p.room.id)]
	if !ok {
		return
	}

	var payload struct {
		Events []json.RawMessage `json:"e"`
	}
	if err := json.Unmarshal(roomPayload, &payload); err != nil {
		p.logger.Warn().Err(err).Msg("Discarding malformed room payload in websocket frame.")
		return
	}
	if len(payload.Events) == 0 {
		return
	}

	p.room.dispatcher.dispatch(payload.Events)
}

// idleFor reports how long the channel has gone without receiving a frame.
func (p *pushChannel) idleFor() time.Duration {
	return time.Since(time.Unix(0, p.lastActivity.Load()))
}

// closeConn drops the current connection, returning the channel to the
// disconnected state so it can be reopened. Safe when already disconnected.
func (p *pushChannel) closeConn() {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	if p.state != stateClosed {
		p.state = stateDisconnected
	}
	p.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			p.logger.Debug().Err(err).Msg("Error while closing the websocket.")
		}
	}
}

// shutdown moves the channel to its terminal state. Safe when already
// disconnected or shut down.
func (p *pushChannel) shutdown() {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.state = stateClosed
	p.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			p.logger.Debug().Err(err).Msg("Error while closing the websocket.")
		}
	}
}

func (p *pushChannel) setDisconnected() {
	p.mu.Lock()
	if p.state != stateClosed {
		p.state = stateDisconnected
	}
	p.mu.Unlock()
}

// socketURL obtains the one-time websocket URL for this room: the ws-auth
// endpoint issues the URL, the events endpoint issues the resume-time token
// appended as the l parameter. Both are throttle-retried posts.
func (r *Room) socketURL(ctx context.Context) (string, error) {
	authResult, err := r.executePost(ctx, r.chatURL("/ws-auth"), "roomid", strconv.FormatInt(r.id, 10))
	if err != nil {
		return "", err
	}

	var auth struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(authResult, &auth); err != nil || auth.URL == "" {
		return "", errs.Wrap(errs.ErrMalformedResponse, err, string(authResult))
	}

	timeResult, err := r.executePost(ctx, r.chatURL("/chats/%d/events", r.id))
	if err != nil {
		return "", err
	}

	var resume struct {
		Time json.Number `json:"time"`
	}
	if err := json.Unmarshal(timeResult, &resume); err != nil {
		return "", errs.Wrap(errs.ErrMalformedResponse, err, string(timeResult))
	}

	return auth.URL + "?l=" + resume.Time.String(), nil
}

// gorillaDialer is the production SocketDialer, backed by gorilla/websocket.
type gorillaDialer struct{}

// Dial implements SocketDialer.
func (gorillaDialer) Dial(ctx context.Context, rawURL string, origin string) (SocketConn, error) {
	header := http.Header{}
	header.Set("Origin", origin)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, header)
	if err != nil {
		return nil, err
	}
	return &gorillaConn{conn: conn}, nil
}

// gorillaConn adapts *websocket.Conn to SocketConn.
type gorillaConn struct {
	conn *websocket.Conn
}

// ReadMessage implements SocketConn.
func (c *gorillaConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// Close implements SocketConn.
func (c *gorillaConn) Close() error {
	return c.conn.Close()
}
