package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAppendsQueryParamsAndCookies(t *testing.T) {
	var seen *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Clone(r.Context())
		w.Write([]byte("body"))
	}))
	defer server.Close()

	client := NewClient()
	resp, err := client.Get(context.Background(), server.URL+"/message/42",
		map[string]string{"acct": "secret"},
		"fkey", "abc", "plain", "true",
	)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "body", resp.BodyString())

	require.NotNil(t, seen)
	assert.Equal(t, "abc", seen.URL.Query().Get("fkey"))
	assert.Equal(t, "true", seen.URL.Query().Get("plain"))

	cookie, err := seen.Cookie("acct")
	require.NoError(t, err)
	assert.Equal(t, "secret", cookie.Value)
}

func TestGetDropsOddTrailingParam(t *testing.T) {
	var seen *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Clone(r.Context())
	}))
	defer server.Close()

	client := NewClient()
	_, err := client.Get(context.Background(), server.URL, nil, "fkey", "abc", "dangling")

	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, "abc", seen.URL.Query().Get("fkey"))
	assert.False(t, seen.URL.Query().Has("dangling"))
}

func TestPostSendsFormBody(t *testing.T) {
	var seenForm url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		seenForm = r.PostForm
		w.Write([]byte(`{"id":1}`))
	}))
	defer server.Close()

	client := NewClient()
	form := url.Values{}
	form.Set("fkey", "abc")
	form.Set("text", "hello")

	resp, err := client.Post(context.Background(), server.URL+"/chats/1/messages/new", nil, form)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "abc", seenForm.Get("fkey"))
	assert.Equal(t, "hello", seenForm.Get("text"))
}

func TestNonSuccessStatusIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte("You can perform this action again in 3 seconds"))
	}))
	defer server.Close()

	client := NewClient()
	resp, err := client.Post(context.Background(), server.URL, nil, url.Values{})

	// The session core inspects the status itself.
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.Status)
	assert.Contains(t, resp.BodyString(), "3 seconds")
}

func TestResponseDocumentParsesOnce(t *testing.T) {
	resp := &Response{
		Status: http.StatusOK,
		Body:   []byte(`<html><body><input id="fkey" value="abc"></body></html>`),
	}

	doc, err := resp.Document()
	require.NoError(t, err)

	value, exists := doc.Find("#fkey").Attr("value")
	require.True(t, exists)
	assert.Equal(t, "abc", value)

	again, err := resp.Document()
	require.NoError(t, err)
	assert.Same(t, doc, again)
}
