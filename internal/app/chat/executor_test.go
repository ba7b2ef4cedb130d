package chat

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"sechat/internal/pkg/errs"
	"sechat/internal/pkg/transport"
)

// A throttle body with a zero-second delay keeps retry tests fast while still
// exercising the full retry path.
const throttleBody = "You can perform this action again in 0 seconds from now"

// newBareRoom builds a room without the session setup, enough to exercise the
// executor directly.
func newBareRoom(ft *fakeTransport) *Room {
	return &Room{
		host:      StackExchange,
		id:        1,
		transport: ft,
		cookies:   map[string]string{"acct": "secret"},
		fkey:      "fkey-test",
		presence:  newPresenceTracker(),
		pacer:     rate.NewLimiter(rate.Inf, 1),
		logger:    zerolog.Nop(),
	}
}

func TestExecutePostSuccess(t *testing.T) {
	ft := newFakeTransport()
	ft.onPost("/chats/1/messages/new", func(fields url.Values) (*transport.Response, error) {
		return okResponse(`{"id":42}`)
	})
	r := newBareRoom(ft)

	result, err := r.executePost(context.Background(), r.chatURL("/chats/%d/messages/new", r.id), "text", "hello")

	require.NoError(t, err)
	assert.JSONEq(t, `{"id":42}`, string(result))

	calls := ft.postsTo("/chats/1/messages/new")
	require.Len(t, calls, 1)
	assert.Equal(t, "fkey-test", calls[0].fields.Get("fkey"))
	assert.Equal(t, "hello", calls[0].fields.Get("text"))
}

func TestExecutePostRetriesThrottleThenSucceeds(t *testing.T) {
	ft := newFakeTransport()
	attempts := 0
	ft.onPost("/messages/7", func(url.Values) (*transport.Response, error) {
		attempts++
		if attempts <= 2 {
			return statusResponse(409, throttleBody)
		}
		return okResponse(`"ok"`)
	})
	r := newBareRoom(ft)

	result, err := r.executePost(context.Background(), r.chatURL("/messages/%d", 7), "text", "edited")

	require.NoError(t, err)
	assert.Equal(t, `"ok"`, string(result))
	assert.Equal(t, 3, attempts)

	// Every attempt carries the anti-abuse token.
	for _, call := range ft.postsTo("/messages/7") {
		assert.Equal(t, "fkey-test", call.fields.Get("fkey"))
	}
}

func TestExecutePostThrottleBudgetExhausted(t *testing.T) {
	ft := newFakeTransport()
	attempts := 0
	ft.onPost("/messages/7/delete", func(url.Values) (*transport.Response, error) {
		attempts++
		return statusResponse(409, throttleBody)
	})
	r := newBareRoom(ft)

	_, err := r.executePost(context.Background(), r.chatURL("/messages/%d/delete", 7))

	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.ErrThrottleExceeded))
	assert.Contains(t, err.Error(), throttleBody)
	// Initial attempt plus five retries.
	assert.Equal(t, throttleRetryLimit+1, attempts)
}

func TestExecutePostNonThrottleRejectionIsNotRetried(t *testing.T) {
	ft := newFakeTransport()
	attempts := 0
	ft.onPost("/messages/7", func(url.Values) (*transport.Response, error) {
		attempts++
		return statusResponse(409, "It is too late to edit this message")
	})
	r := newBareRoom(ft)

	_, err := r.executePost(context.Background(), r.chatURL("/messages/%d", 7), "text", "late edit")

	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.ErrOperationRejected))
	assert.Contains(t, err.Error(), "too late to edit")
	assert.Equal(t, 1, attempts)
}

func TestExecutePostTransportErrorIsNotRetried(t *testing.T) {
	ft := newFakeTransport()
	attempts := 0
	ft.onPost("/messages/7", func(url.Values) (*transport.Response, error) {
		attempts++
		return nil, errors.New("connection reset by peer")
	})
	r := newBareRoom(ft)

	_, err := r.executePost(context.Background(), r.chatURL("/messages/%d", 7), "text", "hi")

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestFormWithFKeyDropsOddTrailingKey(t *testing.T) {
	r := newBareRoom(newFakeTransport())

	form := r.formWithFKey([]string{"text", "hello", "dangling"})

	assert.Equal(t, "fkey-test", form.Get("fkey"))
	assert.Equal(t, "hello", form.Get("text"))
	assert.False(t, form.Has("dangling"))
}
