/*
Package chat contains the core logic of a live chat room session.

This file implements the retry-post executor, the only path through which
mutating endpoints are reached. Every call carries the current anti-abuse
token; throttle responses are retried with the server-dictated delay, any
other failure surfaces immediately.
*/
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"sechat/internal/pkg/errs"
	"sechat/internal/pkg/randx"
)

// throttleRetryLimit caps the number of retries after throttle responses.
// One action makes at most throttleRetryLimit+1 attempts.
const throttleRetryLimit = 5

// throttlePattern matches the server's rate-limiting response body and
// captures the mandated wait in seconds.
var throttlePattern = regexp.MustCompile(`You can perform this action again in (\d+) seconds`)

// serverDelay is a go-retry backoff whose next delay is dictated by the
// server's try-again response instead of a computed curve. The executor
// updates next on every throttle hit before the retry sleeps.
type serverDelay struct {
	next time.Duration
}

// Next implements retry.Backoff.
func (b *serverDelay) Next() (time.Duration, bool) {
	return b.next, false
}

// executePost issues a mutating POST with the current anti-abuse token as an
// extra form field. The fields are alternating key/value pairs. On a throttle
// response the calling task blocks for the server-specified delay and
// resubmits, up to throttleRetryLimit times; the budget exhausted, the call
// fails with the last response body as diagnostic. Transport failures and
// non-throttle rejection bodies surface immediately, unretried.
func (r *Room) executePost(ctx context.Context, rawURL string, fields ...string) (json.RawMessage, error) {
	logger := r.logger.With().
		Str("request_id", randx.RequestID()).
		Str("url", rawURL).
		Logger()

	delay := &serverDelay{}
	throttleHits := 0
	var body []byte

	retryErr := retry.Do(ctx, retry.WithMaxRetries(throttleRetryLimit, delay), func(ctx context.Context) error {
		if err := r.pacer.Wait(ctx); err != nil {
			return errs.Wrap(errs.ErrTransportFailed, err)
		}

		resp, err := r.transport.Post(ctx, rawURL, r.cookies, r.formWithFKey(fields))
		if err != nil {
			// Transport errors are never retried.
			return err
		}

		if resp.Status == http.StatusOK {
			body = resp.Body
			return nil
		}

		if match := throttlePattern.FindSubmatch(resp.Body); match != nil {
			seconds, convErr := strconv.Atoi(string(match[1]))
			if convErr == nil {
				throttleHits++
				delay.next = time.Duration(seconds) * time.Second

				logger.Debug().
					Int("retry_in_seconds", seconds).
					Int("throttle_hits", throttleHits).
					Msg("Chat action throttled. Retrying after server-dictated delay.")

				return retry.RetryableError(
					errs.NewError(errs.ErrThrottleExceeded, throttleHits, resp.BodyString()).WithStatus(resp.Status),
				)
			}
		}

		return errs.NewError(errs.ErrOperationRejected, resp.BodyString()).WithStatus(resp.Status)
	})

	if retryErr != nil {
		var chatErr *errs.ChatError
		if errors.As(retryErr, &chatErr) {
			return nil, chatErr
		}
		return nil, errs.Wrap(errs.ErrTransportFailed, retryErr)
	}

	return json.RawMessage(body), nil
}

// postForm issues a non-mutating POST (batched lookups) with the anti-abuse
// token attached but without the throttle retry policy: reads are never
// retried automatically.
func (r *Room) postForm(ctx context.Context, rawURL string, fields ...string) (json.RawMessage, error) {
	resp, err := r.transport.Post(ctx, rawURL, r.cookies, r.formWithFKey(fields))
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, errs.NewError(errs.ErrOperationRejected, resp.BodyString()).WithStatus(resp.Status)
	}
	return json.RawMessage(resp.Body), nil
}

// formWithFKey builds the form body from alternating key/value pairs and
// injects the current anti-abuse token. An odd trailing key is dropped with
// a warning.
func (r *Room) formWithFKey(fields []string) url.Values {
	if len(fields)%2 != 0 {
		r.logger.Warn().
			Int("fields_count", len(fields)).
			Msg("Odd number of form fields. Trailing key ignored.")
		fields = fields[:len(fields)-1]
	}

	form := url.Values{}
	form.Set("fkey", r.currentFKey())
	for i := 0; i < len(fields); i += 2 {
		form.Set(fields[i], fields[i+1])
	}
	return form
}
