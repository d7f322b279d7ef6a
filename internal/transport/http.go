package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

func (e *StatusError) StatusCode() int { return e.Code }

// HTTP opens event streams and performs non-streamed completions against
// the assistant API.
type HTTP struct {
	baseURL string
	apiKey  string
	header  http.Header
	client  *http.Client
}

type Option func(*HTTP)

func WithClient(c *http.Client) Option {
	return func(h *HTTP) { h.client = c }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(h *HTTP) { h.header.Add(key, value) }
}

func NewHTTP(baseURL, apiKey string, opts ...Option) *HTTP {
	h := &HTTP{
		baseURL: baseURL,
		apiKey:  apiKey,
		header:  make(http.Header),
		client: &http.Client{
			// No timeout: event streams are long-lived.
			Timeout: 0,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Open issues the streaming request for subjectID and returns the response
// body. The body is tied to ctx: cancelling ctx unblocks pending reads.
func (h *HTTP) Open(ctx context.Context, subjectID string) (io.ReadCloser, error) {
	target, err := eventsURL(h.baseURL, subjectID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	req.Header = prepareStreamHeaders(h.header, h.apiKey)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	if !isStreamingResponse(resp) {
		resp.Body.Close()
		return nil, fmt.Errorf("open stream: unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	log.Debug().
		Str("subject_id", subjectID).
		Str("url", target).
		Int("status", resp.StatusCode).
		Msg("event stream opened")
	return resp.Body, nil
}

// Complete performs a non-streamed completion for subjectID.
func (h *HTTP) Complete(ctx context.Context, subjectID string, creq CompletionRequest) (*CompletionResponse, error) {
	target, err := completionsURL(h.baseURL, subjectID)
	if err != nil {
		return nil, err
	}

	creq.Stream = false
	body, err := json.Marshal(creq)
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create completion request: %w", err)
	}
	req.Header = prepareHeaders(h.header, h.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read completion response: %w", err)
	}
	var out CompletionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}

	log.Debug().
		Str("subject_id", subjectID).
		Str("model", out.Model).
		Dur("duration", time.Since(start)).
		Msg("completion finished")
	return &out, nil
}

func statusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}

func isStreamingResponse(resp *http.Response) bool {
	ct := resp.Header.Get("Content-Type")
	return strings.Contains(ct, "text/event-stream")
}
