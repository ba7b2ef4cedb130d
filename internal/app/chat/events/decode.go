/*
Package events defines the typed chat events streamed over the push channel.

This file decodes a raw event record, as found in a push frame's "e" array,
into the typed event matching its event_type code.
*/
package events

import (
	"encoding/json"
	"time"

	"sechat/internal/pkg/errs"
)

// rawEvent mirrors the wire shape of one record in a push frame's "e" array.
// Only the fields consumed by the typed events are listed.
type rawEvent struct {
	EventType    int    `json:"event_type"`
	TimeStamp    int64  `json:"time_stamp"`
	Content      string `json:"content"`
	UserID       int64  `json:"user_id"`
	UserName     string `json:"user_name"`
	RoomID       int64  `json:"room_id"`
	MessageID    int64  `json:"message_id"`
	ParentID     int64  `json:"parent_id"`
	TargetUserID int64  `json:"target_user_id"`
	MessageStars int    `json:"message_stars"`
	MessageEdits int    `json:"message_edits"`
}

// Decode parses a raw event record and returns the typed event for its kind.
// Records with an unrecognized event_type yield an ErrUnknownEventKind error;
// the dispatcher logs and skips those rather than failing the frame.
func Decode(record json.RawMessage) (Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(record, &raw); err != nil {
		return nil, errs.Wrap(errs.ErrMalformedResponse, err, "event record is not valid JSON")
	}

	timestamp := time.Unix(raw.TimeStamp, 0).UTC()

	switch Kind(raw.EventType) {
	case KindMessagePosted:
		return MessagePosted{
			MessageID: raw.MessageID,
			RoomID:    raw.RoomID,
			UserID:    raw.UserID,
			UserName:  raw.UserName,
			Content:   raw.Content,
			Timestamp: timestamp,
		}, nil

	case KindMessageEdited:
		return MessageEdited{
			MessageID: raw.MessageID,
			RoomID:    raw.RoomID,
			UserID:    raw.UserID,
			UserName:  raw.UserName,
			Content:   raw.Content,
			Edits:     raw.MessageEdits,
			Timestamp: timestamp,
		}, nil

	case KindUserEntered:
		return UserEntered{
			RoomID:    raw.RoomID,
			UserID:    raw.UserID,
			UserName:  raw.UserName,
			Timestamp: timestamp,
		}, nil

	case KindUserLeft:
		return UserLeft{
			RoomID:    raw.RoomID,
			UserID:    raw.UserID,
			UserName:  raw.UserName,
			Timestamp: timestamp,
		}, nil

	case KindMessageStarred:
		return MessageStarred{
			MessageID: raw.MessageID,
			RoomID:    raw.RoomID,
			Content:   raw.Content,
			Stars:     raw.MessageStars,
			Timestamp: timestamp,
		}, nil

	case KindUserMentioned:
		return UserMentioned{
			MessageID:    raw.MessageID,
			RoomID:       raw.RoomID,
			UserID:       raw.UserID,
			UserName:     raw.UserName,
			TargetUserID: raw.TargetUserID,
			Content:      raw.Content,
			Timestamp:    timestamp,
		}, nil

	case KindMessageReply:
		return MessageReply{
			MessageID:    raw.MessageID,
			ParentID:     raw.ParentID,
			RoomID:       raw.RoomID,
			UserID:       raw.UserID,
			UserName:     raw.UserName,
			TargetUserID: raw.TargetUserID,
			Content:      raw.Content,
			Timestamp:    timestamp,
		}, nil

	default:
		return nil, errs.NewError(errs.ErrUnknownEventKind, raw.EventType)
	}
}
