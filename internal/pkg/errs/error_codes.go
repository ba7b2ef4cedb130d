/*
Package errs provides custom error types and application-level error code constants.

These error codes classify the failures a chat session can surface to the
embedding application, both from HTTP calls and from the push channel.
*/
package errs

// 1xxx: Transport Errors
const (
	// ErrTransportFailed indicates a network or IO failure on an HTTP call.
	ErrTransportFailed = 1001

	// ErrSocketConnectFailed indicates that the push channel websocket could not be established.
	ErrSocketConnectFailed = 1002
)

// 2xxx: Chat Operation Errors
const (
	// ErrOperationRejected indicates that the chat server rejected an action,
	// or that the acknowledgment body was not the expected success marker.
	ErrOperationRejected = 2001

	// ErrThrottleExceeded indicates that an action hit the server throttle on
	// every allowed retry and the retry budget is exhausted.
	ErrThrottleExceeded = 2002

	// ErrMalformedResponse indicates that a server response could not be
	// parsed into the expected shape.
	ErrMalformedResponse = 2003
)

// 3xxx: Session Lifecycle Errors
const (
	// ErrRoomClosed indicates an action was issued against a room that has
	// already been left or shut down.
	ErrRoomClosed = 3001

	// ErrUnknownEventKind indicates a push frame carried an event type the
	// decoder does not recognize.
	ErrUnknownEventKind = 3002
)

// 5xxx: Internal Errors
const (
	// ErrUnknown represents an unclassified internal error.
	ErrUnknown = 5000
)
