/*
Package chat contains the core logic of a live chat room session.

This file defines the Host type: the chat server a room lives on. Room ids
are only unique per host, so every room reference pairs a host with an id.
*/
package chat

// Host identifies one of the chat servers of the network.
type Host string

const (
	// StackOverflow is the chat server at chat.stackoverflow.com.
	StackOverflow Host = "stackoverflow.com"

	// StackExchange is the chat server at chat.stackexchange.com.
	StackExchange Host = "stackexchange.com"

	// MetaStackExchange is the chat server at chat.meta.stackexchange.com.
	MetaStackExchange Host = "meta.stackexchange.com"
)

// ParseHost maps a host name to its Host value. The second return reports
// whether the name is a known chat host.
func ParseHost(name string) (Host, bool) {
	switch Host(name) {
	case StackOverflow, StackExchange, MetaStackExchange:
		return Host(name), true
	default:
		return "", false
	}
}

// ChatBaseURL returns the base URL of the chat server on this host.
func (h Host) ChatBaseURL() string {
	return "https://chat." + string(h)
}

// LoginHost returns the host whose login endpoint authenticates accounts for
// this chat server. The network hub has no own login form; its accounts
// authenticate through the meta site.
func (h Host) LoginHost() Host {
	if h == StackExchange {
		return MetaStackExchange
	}
	return h
}
