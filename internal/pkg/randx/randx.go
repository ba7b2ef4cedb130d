/*
Package randx provides helpers for generating unique identifiers.

The session core tags every outbound mutating call with a request ID so that
retries and throttle waits belonging to one logical action can be correlated
in the logs.
*/
package randx

import (
	"github.com/google/uuid"
)

// RequestID generates a UUID v4 string used to correlate the log entries of
// a single outbound chat action across its retries.
func RequestID() string {
	return uuid.New().String()
}
