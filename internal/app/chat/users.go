/*
Package chat contains the core logic of a live chat room session.

This file implements the user-snapshot queries and the pingable roster. User
snapshots are resolved through the server's batched lookup endpoint, with the
presence flag evaluated against the membership set (or the roster) at fetch
time. The roster is replaced wholesale by the daily resync, never merged with
membership events.
*/
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sechat/internal/pkg/errs"
)

// User is a point-in-time snapshot of a chat user. Immutable once constructed.
type User struct {
	// ID is the user's identifier on the chat server.
	ID int64

	// Name is the display name.
	Name string

	// Reputation is the user's reputation score.
	Reputation int

	// Moderator reports whether the user is a site moderator.
	Moderator bool

	// RoomOwner reports whether the user owns the room of the lookup.
	RoomOwner bool

	// LastSeen is the instant the user was last seen, nil when the server
	// has no record.
	LastSeen *time.Time

	// LastMessage is the instant of the user's last message, nil when the
	// server has no record.
	LastMessage *time.Time

	// CurrentlyInRoom reports presence as resolved at fetch time. Queries on
	// the membership set resolve it against membership; the pingable query
	// resolves it against membership too, marking which roster members are
	// in the room right now.
	CurrentlyInRoom bool
}

// GetUser fetches the snapshot of a single user, with presence resolved
// against the membership set.
func (r *Room) GetUser(ctx context.Context, userID int64) (User, error) {
	users, err := r.fetchUsers(ctx, []int64{userID}, r.presence.contains)
	if err != nil {
		return User{}, err
	}
	if len(users) == 0 {
		return User{}, errs.NewError(errs.ErrMalformedResponse, "user lookup returned no entries")
	}
	return users[0], nil
}

// GetCurrentUsers fetches snapshots for every user currently present in the
// room. Present users have their presence flag set by definition.
func (r *Room) GetCurrentUsers(ctx context.Context) ([]User, error) {
	return r.fetchUsers(ctx, r.presence.snapshot(), func(int64) bool { return true })
}

// GetPingableUsers fetches snapshots for every user eligible to be pinged:
// everyone who has been in the room within the server's trailing 14-day
// window. Presence is resolved against the membership set.
func (r *Room) GetPingableUsers(ctx context.Context) ([]User, error) {
	return r.fetchUsers(ctx, r.pingableSnapshot(), r.presence.contains)
}

// pingableSnapshot returns a copy of the roster ids.
func (r *Room) pingableSnapshot() []int64 {
	r.rosterMu.RLock()
	defer r.rosterMu.RUnlock()

	ids := make([]int64, len(r.pingableIDs))
	copy(ids, r.pingableIDs)
	return ids
}

// syncPingableUsers replaces the pingable roster wholesale from the server.
// Runs immediately at session construction and then daily.
func (r *Room) syncPingableUsers(ctx context.Context) error {
	resp, err := r.transport.Get(ctx, r.chatURL("/rooms/pingable/%d", r.id), r.cookies)
	if err != nil {
		return err
	}
	if resp.Status != http.StatusOK {
		return errs.NewError(errs.ErrOperationRejected, resp.BodyString()).WithStatus(resp.Status)
	}

	ids, err := parsePingableRoster(resp.Body)
	if err != nil {
		return err
	}

	r.rosterMu.Lock()
	r.pingableIDs = ids
	r.rosterMu.Unlock()

	r.logger.Debug().Int("pingable_count", len(ids)).Msg("Pingable roster replaced.")
	return nil
}

// parsePingableRoster extracts the user ids from the pingable endpoint's
// response: a JSON array of rows whose first element is the id.
func parsePingableRoster(body []byte) ([]int64, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var rows [][]any
	if err := decoder.Decode(&rows); err != nil {
		return nil, errs.Wrap(errs.ErrMalformedResponse, err, string(body))
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		num, ok := row[0].(json.Number)
		if !ok {
			continue
		}
		id, err := num.Int64()
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// fetchUsers resolves the given ids to snapshots via the batched lookup
// endpoint, evaluating inRoom per returned user. An empty id list short
// circuits to an empty result.
func (r *Room) fetchUsers(ctx context.Context, userIDs []int64, inRoom func(int64) bool) ([]User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	idParams := make([]string, len(userIDs))
	for i, id := range userIDs {
		idParams[i] = strconv.FormatInt(id, 10)
	}

	result, err := r.postForm(ctx, r.chatURL("/user/info"),
		"ids", strings.Join(idParams, ","),
		"roomId", strconv.FormatInt(r.id, 10),
	)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Users []struct {
			ID          int64  `json:"id"`
			Name        string `json:"name"`
			Reputation  int    `json:"reputation"`
			IsModerator *bool  `json:"is_moderator"`
			IsOwner     *bool  `json:"is_owner"`
			LastSeen    *int64 `json:"last_seen"`
			LastPost    *int64 `json:"last_post"`
		} `json:"users"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, errs.Wrap(errs.ErrMalformedResponse, err, string(result))
	}

	users := make([]User, 0, len(payload.Users))
	for _, raw := range payload.Users {
		users = append(users, User{
			ID:              raw.ID,
			Name:            raw.Name,
			Reputation:      raw.Reputation,
			Moderator:       raw.IsModerator != nil && *raw.IsModerator,
			RoomOwner:       raw.IsOwner != nil && *raw.IsOwner,
			LastSeen:        epochToTime(raw.LastSeen),
			LastMessage:     epochToTime(raw.LastPost),
			CurrentlyInRoom: inRoom(raw.ID),
		})
	}
	return users, nil
}

// epochToTime maps a nullable epoch-seconds value to a *time.Time.
func epochToTime(epoch *int64) *time.Time {
	if epoch == nil {
		return nil
	}
	t := time.Unix(*epoch, 0).UTC()
	return &t
}
