package chat

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/time/rate"

	"sechat/internal/pkg/transport"
)

// roomPageHTML is a minimal room page carrying an fkey field and the inline
// script that embeds the present users.
const roomPageHTML = `<html><head><title>test room</title></head><body>
<input id="fkey" name="fkey" type="hidden" value="fkey-abcdef0123456789">
<script type="text/javascript">
  CHAT.RoomUsers.initPresent([{id: 101, name: 'Alice'}, {id: 202, name: 'Bob'}]);
</script>
</body></html>`

// pingableJSON lists users 101 and 303 as pingable.
const pingableJSON = `[[101,"Alice",1400000000,1400000000],[303,"Carol",1400000000,1400000000]]`

type postCall struct {
	url    string
	fields url.Values
}

type getCall struct {
	url    string
	params []string
}

// fakeTransport is an in-memory Transport. Routes are matched by URL path
// suffix; unmatched calls fail loudly.
type fakeTransport struct {
	mu sync.Mutex

	getRoutes  map[string]func(params []string) (*transport.Response, error)
	postRoutes map[string]func(fields url.Values) (*transport.Response, error)

	getCalls  []getCall
	postCalls []postCall
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		getRoutes:  make(map[string]func(params []string) (*transport.Response, error)),
		postRoutes: make(map[string]func(fields url.Values) (*transport.Response, error)),
	}
}

func (f *fakeTransport) onGet(path string, fn func(params []string) (*transport.Response, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getRoutes[path] = fn
}

func (f *fakeTransport) onPost(path string, fn func(fields url.Values) (*transport.Response, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postRoutes[path] = fn
}

func (f *fakeTransport) Get(_ context.Context, rawURL string, _ map[string]string, params ...string) (*transport.Response, error) {
	f.mu.Lock()
	f.getCalls = append(f.getCalls, getCall{url: rawURL, params: params})
	fn, ok := f.getRoutes[urlPath(rawURL)]
	f.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("unexpected GET %s", rawURL)
	}
	return fn(params)
}

func (f *fakeTransport) Post(_ context.Context, rawURL string, _ map[string]string, fields url.Values) (*transport.Response, error) {
	f.mu.Lock()
	f.postCalls = append(f.postCalls, postCall{url: rawURL, fields: fields})
	fn, ok := f.postRoutes[urlPath(rawURL)]
	f.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("unexpected POST %s", rawURL)
	}
	return fn(fields)
}

func (f *fakeTransport) postsTo(path string) []postCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	var calls []postCall
	for _, call := range f.postCalls {
		if urlPath(call.url) == path {
			calls = append(calls, call)
		}
	}
	return calls
}

func urlPath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return parsed.Path
}

func okResponse(body string) (*transport.Response, error) {
	return &transport.Response{Status: 200, Body: []byte(body)}, nil
}

func statusResponse(status int, body string) (*transport.Response, error) {
	return &transport.Response{Status: status, Body: []byte(body)}, nil
}

// withSessionRoutes registers the routes the session setup needs: the room
// page, the pingable roster, the socket handshake and the leave endpoint.
func withSessionRoutes(ft *fakeTransport) {
	ft.onGet("/rooms/1", func([]string) (*transport.Response, error) {
		return okResponse(roomPageHTML)
	})
	ft.onGet("/rooms/pingable/1", func([]string) (*transport.Response, error) {
		return okResponse(pingableJSON)
	})
	ft.onPost("/ws-auth", func(url.Values) (*transport.Response, error) {
		return okResponse(`{"url":"wss://chat.sockets.example/events/1"}`)
	})
	ft.onPost("/chats/1/events", func(url.Values) (*transport.Response, error) {
		return okResponse(`{"time":123456}`)
	})
	ft.onPost("/chats/leave/1", func(url.Values) (*transport.Response, error) {
		return okResponse(`"ok"`)
	})
}

// fakeConn is a scripted push-socket connection fed frames by the test.
type fakeConn struct {
	frames    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case frame := <-c.frames:
		return frame, nil
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// fakeDialer hands out fresh fakeConns and records the dialed URLs.
type fakeDialer struct {
	mu      sync.Mutex
	conns   []*fakeConn
	urls    []string
	origins []string
	err     error
}

func (d *fakeDialer) Dial(_ context.Context, rawURL string, origin string) (SocketConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.err != nil {
		return nil, d.err
	}

	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	d.urls = append(d.urls, rawURL)
	d.origins = append(d.origins, origin)
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// newTestRoom builds a live room session against the fake collaborators.
func newTestRoom(ctx context.Context, ft *fakeTransport, dialer *fakeDialer) (*Room, error) {
	return newRoom(ctx, StackExchange, 1, sessionConfig{
		transport:        ft,
		dialer:           dialer,
		cookies:          map[string]string{"acct": "secret"},
		watchdogInterval: defaultWatchdogInterval,
		postRate:         rate.Inf,
		postBurst:        1,
	})
}
