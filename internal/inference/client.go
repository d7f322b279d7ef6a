package inference

import (
	"context"

	"github.com/namikmesic/sidekick-stream/internal/transport"
)

type Completer interface {
	Complete(ctx context.Context, subjectID string, req transport.CompletionRequest) (*transport.CompletionResponse, error)
}

// Client instruments non-streamed completions.
type Client struct {
	completer Completer
	recorder  Recorder
}

func NewClient(completer Completer, recorder Recorder) *Client {
	return &Client{completer: completer, recorder: recorder}
}

func (c *Client) Complete(ctx context.Context, subjectID string, req transport.CompletionRequest) (*transport.CompletionResponse, error) {
	return Call(ctx, req.Model, c.recorder, func(ctx context.Context) (*transport.CompletionResponse, error) {
		return c.completer.Complete(ctx, subjectID, req)
	})
}
