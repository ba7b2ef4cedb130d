package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHost(t *testing.T) {
	host, ok := ParseHost("stackexchange.com")
	require.True(t, ok)
	assert.Equal(t, StackExchange, host)

	host, ok = ParseHost("stackoverflow.com")
	require.True(t, ok)
	assert.Equal(t, StackOverflow, host)

	_, ok = ParseHost("example.com")
	assert.False(t, ok)
}

func TestChatBaseURL(t *testing.T) {
	assert.Equal(t, "https://chat.stackexchange.com", StackExchange.ChatBaseURL())
	assert.Equal(t, "https://chat.stackoverflow.com", StackOverflow.ChatBaseURL())
}

func TestLoginHost(t *testing.T) {
	// Accounts on the network hub authenticate through the meta site.
	assert.Equal(t, MetaStackExchange, StackExchange.LoginHost())
	assert.Equal(t, StackOverflow, StackOverflow.LoginHost())
	assert.Equal(t, MetaStackExchange, MetaStackExchange.LoginHost())
}
