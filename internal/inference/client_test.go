package inference

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/namikmesic/sidekick-stream/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	err error
}

func (s stubCompleter) Complete(ctx context.Context, subjectID string, req transport.CompletionRequest) (*transport.CompletionResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &transport.CompletionResponse{Model: req.Model}, nil
}

func TestClient_PassesFailureThrough(t *testing.T) {
	failure := &transport.StatusError{Code: http.StatusTooManyRequests}
	rec := &fakeRecorder{panicWith: "boom"}

	_, err := NewClient(stubCompleter{err: failure}, rec).Complete(context.Background(), "t1", transport.CompletionRequest{Model: "m"})
	assert.Same(t, failure, err)
	assert.Equal(t, []Category{CategoryRateLimit}, rec.failures)
}

func TestClient_HTTPTimeoutStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	rec := &fakeRecorder{}
	_, err := NewClient(transport.NewHTTP(srv.URL, ""), rec).Complete(context.Background(), "t1", transport.CompletionRequest{Model: "m"})
	require.Error(t, err)
	assert.Equal(t, []Category{CategoryTimeout}, rec.failures)
}

func TestClient_Success(t *testing.T) {
	rec := &fakeRecorder{}
	resp, err := NewClient(stubCompleter{}, rec).Complete(context.Background(), "t1", transport.CompletionRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "m", resp.Model)
	assert.Equal(t, 1, rec.successes)
}
