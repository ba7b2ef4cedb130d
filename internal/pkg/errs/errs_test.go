package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorFormatsTemplate(t *testing.T) {
	err := NewError(ErrOperationRejected, "It is too late to edit this message")

	assert.Equal(t, ErrOperationRejected, err.Code)
	assert.Contains(t, err.Message, "It is too late to edit this message")
	assert.Contains(t, err.Error(), fmt.Sprintf("Error Code %d", ErrOperationRejected))
}

func TestNewErrorUnknownCodeDegrades(t *testing.T) {
	err := NewError(999999)

	assert.Equal(t, ErrUnknown, err.Code)
}

func TestWithStatus(t *testing.T) {
	base := NewError(ErrOperationRejected, "rejected")
	annotated := base.WithStatus(409)

	assert.Equal(t, 409, annotated.Status)
	assert.Contains(t, annotated.Error(), "HTTP 409")
	// The original is untouched.
	assert.Zero(t, base.Status)
}

func TestWrapExposesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(ErrTransportFailed, cause)

	assert.ErrorIs(t, err, cause)
}

func TestIsCode(t *testing.T) {
	err := NewError(ErrThrottleExceeded, 6, "slow down")

	assert.True(t, IsCode(err, ErrThrottleExceeded))
	assert.False(t, IsCode(err, ErrOperationRejected))
	assert.False(t, IsCode(errors.New("plain"), ErrThrottleExceeded))

	// Codes survive wrapping in plain error chains.
	wrapped := fmt.Errorf("action failed: %w", err)
	require.True(t, IsCode(wrapped, ErrThrottleExceeded))
}
