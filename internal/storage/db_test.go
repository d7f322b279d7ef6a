package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/namikmesic/sidekick-stream/internal/inference"
	"github.com/namikmesic/sidekick-stream/internal/stream"
	"github.com/namikmesic/sidekick-stream/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real database only when TEST_DATABASE_URL is set.
func TestPostgres_RoundTrip(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	pool, err := NewPool(ctx, url)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, RunMigrations(ctx, pool))

	runID := uuid.New()
	subject := "it-" + runID.String()
	frames := []FrameRecord{
		{Timestamp: time.Now(), Index: 1, Frame: stream.ThreadFrame{Data: json.RawMessage(`{"type":"thread","title":"x"}`)}},
		{Timestamp: time.Now(), Index: 2, Frame: stream.ErrorFrame{Data: json.RawMessage(`{"type":"error"}`)}},
	}
	require.NoError(t, InsertFramesJob(subject, runID, frames).Execute(ctx, pool))

	var count int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*) FROM stream_frames WHERE run_id = $1`, runID).Scan(&count))
	assert.Equal(t, 2, count)

	w := NewBatchWriter(pool, WriterConfig{})
	rec := NewCallRecorder(w)
	model := "it-model-" + runID.String()
	rec.RecordFailure(model, inference.CategoryRateLimit, 120*time.Millisecond,
		fmt.Errorf("complete: %w", &transport.StatusError{Code: 429}))
	rec.RecordSuccess(model, time.Second)
	w.Shutdown()
	assert.Zero(t, w.Failed())

	var status int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT status_code FROM inference_calls WHERE model = $1 AND NOT success`, model).Scan(&status))
	assert.Equal(t, 429, status)
}
