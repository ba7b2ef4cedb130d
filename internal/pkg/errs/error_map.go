/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to ChatError templates, used to
standardize the messages surfaced to the embedding application.
*/
package errs

// errorMap stores the ChatError template corresponding to every error code.
// Templates may contain printf-style placeholders filled by NewError details.
var errorMap = map[int]ChatError{
	// 1xxx: Transport Errors
	ErrTransportFailed:     {Code: ErrTransportFailed, Message: "The HTTP request to the chat server failed."},
	ErrSocketConnectFailed: {Code: ErrSocketConnectFailed, Message: "Cannot connect to the chat websocket."},

	// 2xxx: Chat Operation Errors
	ErrOperationRejected: {Code: ErrOperationRejected, Message: "The chat operation failed with the message: %s"},
	ErrThrottleExceeded:  {Code: ErrThrottleExceeded, Message: "The chat operation was throttled %d times in a row. Last response: %s"},
	ErrMalformedResponse: {Code: ErrMalformedResponse, Message: "The chat server returned an unexpected response: %s"},

	// 3xxx: Session Lifecycle Errors
	ErrRoomClosed:       {Code: ErrRoomClosed, Message: "The room session is closed."},
	ErrUnknownEventKind: {Code: ErrUnknownEventKind, Message: "Unrecognized chat event type %d."},

	// 5xxx: Internal Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong inside the chat session."},
}
