/*
Package chat contains the core logic of a live chat room session.

This file implements the membership tracker: the live view of who is present
in the room. The set is seeded once by scraping the room page and then kept
current solely by the built-in entered/left listeners; the logged-in user's
own entry and exit are tracked like any other user's.
*/
package chat

import (
	"context"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"sechat/internal/pkg/errs"
)

// membershipIDPattern matches the numeric user-id markers embedded in the
// room page's inline scripts.
var membershipIDPattern = regexp.MustCompile(`\{id:\s?(\d+),`)

// presenceTracker is the membership set of the room. Writers are the built-in
// dispatcher listeners and the one-time scrape; readers are the query surface.
type presenceTracker struct {
	mu  sync.RWMutex
	ids map[int64]struct{}
}

func newPresenceTracker() *presenceTracker {
	return &presenceTracker{
		ids: make(map[int64]struct{}),
	}
}

// add records a user as present. Entering twice without leaving keeps a
// single entry.
func (t *presenceTracker) add(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ids[userID] = struct{}{}
}

// remove records a user as absent. Removing an unknown id is a no-op.
func (t *presenceTracker) remove(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.ids, userID)
}

// contains reports whether the user is currently present.
func (t *presenceTracker) contains(userID int64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.ids[userID]
	return ok
}

// snapshot returns the present user ids in ascending order.
func (t *presenceTracker) snapshot() []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]int64, 0, len(t.ids))
	for id := range t.ids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// reseed replaces the whole set.
func (t *presenceTracker) reseed(ids []int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ids = make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		t.ids[id] = struct{}{}
	}
}

// syncCurrentUsers seeds the membership set by scraping the room page for
// embedded user-id markers. It runs once at session construction; afterwards
// only the built-in entered/left listeners mutate the set.
func (r *Room) syncCurrentUsers(ctx context.Context) error {
	resp, err := r.transport.Get(ctx, r.chatURL("/rooms/%d", r.id), r.cookies)
	if err != nil {
		return err
	}
	if resp.Status != http.StatusOK {
		return errs.NewError(errs.ErrOperationRejected, resp.BodyString()).WithStatus(resp.Status)
	}

	doc, err := resp.Document()
	if err != nil {
		return err
	}

	ids := scrapeMemberIDs(doc)
	r.presence.reseed(ids)

	r.logger.Debug().Int("member_count", len(ids)).Msg("Membership set seeded from room page.")
	return nil
}

// scrapeMemberIDs collects the user ids referenced by the room page's inline
// scripts. All scripts are scanned; the page embeds the present users in one
// of them.
func scrapeMemberIDs(doc *goquery.Document) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64

	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		for _, match := range membershipIDPattern.FindAllStringSubmatch(sel.Text(), -1) {
			id, err := strconv.ParseInt(match[1], 10, 64)
			if err != nil {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	})
	return ids
}
