/*
Package chat contains the core logic of a live chat room session.

This file implements the message queries: fetching a message's content and
author, and the advisory edit-window check. A not-found response on the
message fetch is mapped to a deleted-message value rather than an error,
because deleted messages of other users are hidden from non-privileged
viewers.
*/
package chat

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sechat/internal/pkg/errs"
)

const (
	// editWindow is how long a message stays editable after being posted.
	// The boundary is inclusive: a message exactly editWindow old is still
	// editable.
	editWindow = 115 * time.Second

	// messageTimeLayout parses the hh:mm a timestamps of the history page,
	// which are rendered in UTC.
	messageTimeLayout = "03:04 PM"
)

// Message is a fetched room message. PlainContent and Content are nil for a
// message deleted by another user, whose content is hidden.
type Message struct {
	// ID is the message identifier.
	ID int64

	// User is the snapshot of the author, nil when the author cannot be
	// resolved (hidden deleted message).
	User *User

	// PlainContent is the message source markup.
	PlainContent *string

	// Content is the rendered message markup.
	Content *string

	// Deleted reports whether the message has been deleted.
	Deleted bool
}

// GetMessage fetches the message with the given id: plain and rendered
// content plus its history page for the author and deletion state. A
// not-found response on any of the three fetches means the message was
// deleted by another user and is hidden from this session; it is returned as
// a deleted-message value, not an error.
func (r *Room) GetMessage(ctx context.Context, messageID int64) (*Message, error) {
	fkey := r.currentFKey()
	messageURL := r.chatURL("/message/%d", messageID)

	hiddenDeleted := func() (*Message, error) {
		r.logger.Debug().Int64("message_id", messageID).Msg("Tried to view a hidden deleted message.")
		return &Message{ID: messageID, Deleted: true}, nil
	}

	plainResp, err := r.transport.Get(ctx, messageURL, r.cookies, "fkey", fkey, "plain", "true")
	if err != nil {
		return nil, err
	}
	if plainResp.Status == http.StatusNotFound {
		return hiddenDeleted()
	}
	if plainResp.Status != http.StatusOK {
		return nil, errs.NewError(errs.ErrOperationRejected, plainResp.BodyString()).WithStatus(plainResp.Status)
	}

	renderedResp, err := r.transport.Get(ctx, messageURL, r.cookies, "fkey", fkey, "plain", "false")
	if err != nil {
		return nil, err
	}
	if renderedResp.Status == http.StatusNotFound {
		return hiddenDeleted()
	}
	if renderedResp.Status != http.StatusOK {
		return nil, errs.NewError(errs.ErrOperationRejected, renderedResp.BodyString()).WithStatus(renderedResp.Status)
	}

	historyDoc, err := r.fetchHistory(ctx, messageID)
	if err != nil {
		if isNotFound(err) {
			return hiddenDeleted()
		}
		return nil, err
	}

	authorID, err := historyAuthorID(historyDoc)
	if err != nil {
		return nil, err
	}

	author, err := r.GetUser(ctx, authorID)
	if err != nil {
		return nil, err
	}

	plain := plainResp.BodyString()
	rendered := renderedResp.BodyString()

	return &Message{
		ID:           messageID,
		User:         &author,
		PlainContent: &plain,
		Content:      &rendered,
		Deleted:      historyShowsDeleted(historyDoc),
	}, nil
}

// IsEditable reports whether the message falls within the edit window right
// now. Advisory only: a subsequent Edit can still fail if the window elapses
// in between, and can fail for other reasons regardless.
func (r *Room) IsEditable(ctx context.Context, messageID int64) (bool, error) {
	historyDoc, err := r.fetchHistory(ctx, messageID)
	if err != nil {
		return false, err
	}

	stamp := historyDoc.Find(".timestamp").Last().Text()
	posted, err := parseMessageTime(stamp, time.Now().UTC())
	if err != nil {
		return false, err
	}

	return withinEditWindow(posted, time.Now().UTC()), nil
}

// fetchHistory retrieves and parses the message history page.
func (r *Room) fetchHistory(ctx context.Context, messageID int64) (*goquery.Document, error) {
	resp, err := r.transport.Get(ctx, r.chatURL("/messages/%d/history", messageID), r.cookies, "fkey", r.currentFKey())
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, errs.NewError(errs.ErrOperationRejected, resp.BodyString()).WithStatus(resp.Status)
	}
	return resp.Document()
}

// isNotFound reports whether err is an operation error carrying HTTP 404.
func isNotFound(err error) bool {
	var chatErr *errs.ChatError
	return errors.As(err, &chatErr) && chatErr.Status == http.StatusNotFound
}

// historyAuthorID extracts the author's user id from the history page's
// username link, whose href has the form /users/{id}/{name}.
func historyAuthorID(doc *goquery.Document) (int64, error) {
	href, exists := doc.Find(".username > a").First().Attr("href")
	if !exists {
		return 0, errs.NewError(errs.ErrMalformedResponse, "history page carries no author link")
	}

	parts := strings.Split(href, "/")
	if len(parts) < 3 {
		return 0, errs.NewError(errs.ErrMalformedResponse, href)
	}

	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, errs.Wrap(errs.ErrMalformedResponse, err, href)
	}
	return id, nil
}

// historyShowsDeleted reports whether any history entry marks the message as
// deleted.
func historyShowsDeleted(doc *goquery.Document) bool {
	deleted := false
	doc.Find(".message .content").Each(func(_ int, sel *goquery.Selection) {
		if sel.Find("b").Text() == "deleted" {
			deleted = true
		}
	})
	return deleted
}

// parseMessageTime resolves an hh:mm a history timestamp against the current
// UTC date. A parsed time in the future is taken to be from the previous day.
func parseMessageTime(text string, now time.Time) (time.Time, error) {
	parsed, err := time.Parse(messageTimeLayout, strings.ToUpper(strings.TrimSpace(text)))
	if err != nil {
		return time.Time{}, errs.Wrap(errs.ErrMalformedResponse, err, text)
	}

	posted := time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, time.UTC)
	if posted.After(now) {
		posted = posted.AddDate(0, 0, -1)
	}
	return posted, nil
}

// withinEditWindow reports whether a message posted at the given instant is
// still editable at now. The boundary is inclusive.
func withinEditWindow(posted, now time.Time) bool {
	return now.Sub(posted) <= editWindow
}
