package transport_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/namikmesic/sidekick-stream/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTP_Open(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/threads/t%201/events", r.URL.EscapedPath())
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "web", r.Header.Get("X-Client"))
		assert.Empty(t, r.Header.Get("Connection"))

		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		io.WriteString(w, "data: {\"type\":\"message\"}\n\n")
	}))
	defer srv.Close()

	h := transport.NewHTTP(srv.URL+"/api/", "secret",
		transport.WithHeader("X-Client", "web"),
		transport.WithHeader("Connection", "keep-alive"),
	)
	body, err := h.Open(context.Background(), "t 1")
	require.NoError(t, err)
	defer body.Close()

	b, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "data: {\"type\":\"message\"}\n\n", string(b))
}

func TestHTTP_OpenStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := transport.NewHTTP(srv.URL, "").Open(context.Background(), "t1")
	var se *transport.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode())
	assert.Equal(t, "slow down", se.Body)
}

func TestHTTP_OpenRejectsNonStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	_, err := transport.NewHTTP(srv.URL, "").Open(context.Background(), "t1")
	assert.ErrorContains(t, err, "unexpected content type")
}

func TestHTTP_OpenBadBaseURL(t *testing.T) {
	_, err := transport.NewHTTP("not-a-url", "").Open(context.Background(), "t1")
	assert.Error(t, err)
}

func TestHTTP_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/threads/t1/completions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req transport.CompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "m", req.Model)
		require.Len(t, req.Messages, 1)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","model":"m","content":[
			{"type":"thinking","thinking":"hmm"},
			{"type":"text","text":"<think>x</think>"},
			{"type":"text","text":"answer"}
		],"usage":{"input_tokens":3,"output_tokens":5}}`)
	}))
	defer srv.Close()

	resp, err := transport.NewHTTP(srv.URL, "").Complete(context.Background(), "t1", transport.CompletionRequest{
		Model:    "m",
		Stream:   true,
		Messages: []transport.Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "<think>x</think>answer", resp.Text())
	assert.Equal(t, 5, resp.Usage.OutputTokens)
}

func TestHTTP_CompleteStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	_, err := transport.NewHTTP(srv.URL, "").Complete(context.Background(), "t1", transport.CompletionRequest{Model: "m"})
	var se *transport.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusGatewayTimeout, se.Code)
	assert.Equal(t, "unexpected status 504", se.Error())
}
