package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/namikmesic/sidekick-stream/internal/inference"
)

type InferenceCallRecord struct {
	ID           uuid.UUID
	Timestamp    time.Time
	Model        string
	Success      bool
	Category     string
	StatusCode   int
	ErrorMessage string
	DurationMs   int
}

func InsertInferenceCallJob(r *InferenceCallRecord) WriteJob {
	return WriteJobFunc(func(ctx context.Context, pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, `
			INSERT INTO inference_calls (
				id, ts, model, success, category, status_code, error_message, duration_ms
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			r.ID, r.Timestamp, nilIfEmpty(r.Model), r.Success, nilIfEmpty(r.Category),
			nilIfZero(r.StatusCode), nilIfEmpty(r.ErrorMessage), r.DurationMs,
		)
		return err
	})
}

// CallRecorder is an inference.Recorder that queues one row per call.
type CallRecorder struct {
	writer *BatchWriter
}

func NewCallRecorder(writer *BatchWriter) *CallRecorder {
	return &CallRecorder{writer: writer}
}

func (r *CallRecorder) RecordSuccess(model string, d time.Duration) {
	r.writer.Enqueue(InsertInferenceCallJob(&InferenceCallRecord{
		ID:         uuid.New(),
		Timestamp:  time.Now().Add(-d),
		Model:      model,
		Success:    true,
		DurationMs: int(d.Milliseconds()),
	}))
}

func (r *CallRecorder) RecordFailure(model string, category inference.Category, d time.Duration, err error) {
	rec := &InferenceCallRecord{
		ID:         uuid.New(),
		Timestamp:  time.Now().Add(-d),
		Model:      model,
		Category:   string(category),
		StatusCode: inference.StatusOf(err),
		DurationMs: int(d.Milliseconds()),
	}
	if err != nil {
		rec.ErrorMessage = err.Error()
	}
	r.writer.Enqueue(InsertInferenceCallJob(rec))
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nilIfZero(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
