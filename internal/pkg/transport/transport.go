/*
Package transport implements the HTTP collaborator of the chat session core.

It wraps net/http with the two calls the session needs: cookie-carrying GET
requests (optionally with query parameters) and form-encoded POST requests.
Responses expose the raw body plus a lazily parsed HTML document for the
scraping paths (anti-abuse token, message history, membership markers).
*/
package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"sechat/internal/pkg/errs"
	"sechat/internal/pkg/logx"
)

const (
	// requestTimeout bounds every HTTP call issued by the session.
	requestTimeout = 30 * time.Second

	// userAgent identifies the client to the chat server.
	userAgent = "Mozilla/5.0 (compatible; sechat/1.0)"

	// maxBodyBytes caps the response body size read into memory.
	maxBodyBytes = 4 << 20 // 4 MB
)

// Response holds the outcome of an HTTP call: the status code, the raw body,
// and a lazily parsed HTML document for scraping paths.
type Response struct {
	// Status is the HTTP status code of the response.
	Status int

	// Body is the raw response body.
	Body []byte

	doc    *goquery.Document
	docErr error
	parsed bool
}

// BodyString returns the raw body as a string.
func (r *Response) BodyString() string {
	return string(r.Body)
}

// Document parses the body as HTML and returns the resulting document.
// The parse happens at most once per response.
func (r *Response) Document() (*goquery.Document, error) {
	if !r.parsed {
		r.parsed = true

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			r.docErr = errs.Wrap(errs.ErrMalformedResponse, err, "response body is not parseable HTML")
		} else {
			r.doc = doc
		}
	}

	return r.doc, r.docErr
}

// Client issues the HTTP calls of the chat session. It is safe for use from
// multiple goroutines.
type Client struct {
	// http is the underlying HTTP client shared by all calls.
	http *http.Client

	// structured logger with transport context.
	logger zerolog.Logger
}

// NewClient constructs a transport client with the session's timeouts applied.
func NewClient() *Client {
	transportLogger := logx.Logger().With().Str("component", "transport").Logger()

	return &Client{
		http: &http.Client{
			Timeout: requestTimeout,
		},
		logger: transportLogger,
	}
}

// Get issues a GET request to rawURL carrying the given cookies. The params
// are alternating key/value pairs appended as query parameters; an odd count
// drops the trailing key with a warning.
func (c *Client) Get(ctx context.Context, rawURL string, cookies map[string]string, params ...string) (*Response, error) {
	if len(params)%2 != 0 {
		c.logger.Warn().
			Str("url", rawURL).
			Int("params_count", len(params)).
			Msg("Odd number of query parameters. Trailing key ignored.")
		params = params[:len(params)-1]
	}

	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, errs.Wrap(errs.ErrTransportFailed, err)
	}

	query := target.Query()
	for i := 0; i < len(params); i += 2 {
		query.Set(params[i], params[i+1])
	}
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrTransportFailed, err)
	}

	return c.do(req, cookies)
}

// Post issues a form-encoded POST request to rawURL carrying the given cookies.
func (c *Client) Post(ctx context.Context, rawURL string, cookies map[string]string, fields url.Values) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(fields.Encode()))
	if err != nil {
		return nil, errs.Wrap(errs.ErrTransportFailed, err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req, cookies)
}

// do attaches the common headers and cookies, executes the request, and reads
// the full body. Non-2xx statuses are not errors at this layer: the session
// core inspects Response.Status itself (throttle and not-found handling both
// depend on the body of non-2xx responses).
func (c *Client) do(req *http.Request, cookies map[string]string) (*Response, error) {
	req.Header.Set("User-Agent", userAgent)

	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	started := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().
			Err(err).
			Str("method", req.Method).
			Str("url", req.URL.String()).
			Msg("HTTP request failed")
		return nil, errs.Wrap(errs.ErrTransportFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errs.Wrap(errs.ErrTransportFailed, err)
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("latency", time.Since(started)).
		Msg("HTTP request completed")

	return &Response{
		Status: resp.StatusCode,
		Body:   body,
	}, nil
}
