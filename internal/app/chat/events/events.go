/*
Package events defines the typed chat events streamed over the push channel.

Every raw event record carried by a push frame is decoded once, at the
boundary, into exactly one of the event structs below. Each struct is an
immutable value tagged with its Kind; application code registers listeners
per kind and receives the already-typed payload.
*/
package events

import "time"

// Kind tags an event with its wire event type. The numeric values are the
// chat server's own event_type codes.
type Kind int

const (
	// KindMessagePosted is raised when a user posts a message in the room.
	// Replies and mentions raise this event as well.
	KindMessagePosted Kind = 1

	// KindMessageEdited is raised when a previously posted message is edited.
	KindMessageEdited Kind = 2

	// KindUserEntered is raised when a user enters the room. It is only
	// raised if the user was not already present.
	KindUserEntered Kind = 3

	// KindUserLeft is raised when a user leaves the room.
	KindUserLeft Kind = 4

	// KindMessageStarred is raised when a message is starred or unstarred.
	KindMessageStarred Kind = 6

	// KindUserMentioned is raised when a message pings the logged-in user
	// with an @{username} mention. A corresponding KindMessagePosted or
	// KindMessageEdited event is raised alongside it.
	KindUserMentioned Kind = 8

	// KindMessageReply is raised when a message replies to one of the
	// logged-in user's messages via the :{messageId} feature. A corresponding
	// KindMessagePosted or KindMessageEdited event is raised alongside it.
	KindMessageReply Kind = 18
)

// String returns a stable name for the kind, used in logs.
func (k Kind) String() string {
	switch k {
	case KindMessagePosted:
		return "message_posted"
	case KindMessageEdited:
		return "message_edited"
	case KindUserEntered:
		return "user_entered"
	case KindUserLeft:
		return "user_left"
	case KindMessageStarred:
		return "message_starred"
	case KindUserMentioned:
		return "user_mentioned"
	case KindMessageReply:
		return "message_reply"
	default:
		return "unknown"
	}
}

// Event is the interface implemented by every typed chat event.
type Event interface {
	// EventKind returns the kind tag of the event.
	EventKind() Kind
}

// MessagePosted carries a newly posted room message.
type MessagePosted struct {
	MessageID int64
	RoomID    int64
	UserID    int64
	UserName  string
	Content   string
	Timestamp time.Time
}

// EventKind implements Event.
func (MessagePosted) EventKind() Kind { return KindMessagePosted }

// MessageEdited carries an edit to an existing room message.
type MessageEdited struct {
	MessageID int64
	RoomID    int64
	UserID    int64
	UserName  string
	Content   string
	Edits     int
	Timestamp time.Time
}

// EventKind implements Event.
func (MessageEdited) EventKind() Kind { return KindMessageEdited }

// UserEntered signals that a user entered the room.
type UserEntered struct {
	RoomID    int64
	UserID    int64
	UserName  string
	Timestamp time.Time
}

// EventKind implements Event.
func (UserEntered) EventKind() Kind { return KindUserEntered }

// UserLeft signals that a user left the room.
type UserLeft struct {
	RoomID    int64
	UserID    int64
	UserName  string
	Timestamp time.Time
}

// EventKind implements Event.
func (UserLeft) EventKind() Kind { return KindUserLeft }

// MessageStarred signals a change to a message's star count.
type MessageStarred struct {
	MessageID int64
	RoomID    int64
	Content   string
	Stars     int
	Timestamp time.Time
}

// EventKind implements Event.
func (MessageStarred) EventKind() Kind { return KindMessageStarred }

// UserMentioned carries a message that mentions the logged-in user.
type UserMentioned struct {
	MessageID    int64
	RoomID       int64
	UserID       int64
	UserName     string
	TargetUserID int64
	Content      string
	Timestamp    time.Time
}

// EventKind implements Event.
func (UserMentioned) EventKind() Kind { return KindUserMentioned }

// MessageReply carries a message replying to one of the logged-in user's messages.
type MessageReply struct {
	MessageID    int64
	ParentID     int64
	RoomID       int64
	UserID       int64
	UserName     string
	TargetUserID int64
	Content      string
	Timestamp    time.Time
}

// EventKind implements Event.
func (MessageReply) EventKind() Kind { return KindMessageReply }
