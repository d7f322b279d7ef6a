package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/namikmesic/sidekick-stream/internal/stream"
)

// FrameRecord is one dispatched frame of a run.
type FrameRecord struct {
	Timestamp time.Time
	Index     int
	Frame     stream.Frame
}

// InsertFramesJob creates a batch insert job for a run's frames using the
// COPY protocol.
func InsertFramesJob(subjectID string, runID uuid.UUID, frames []FrameRecord) WriteJob {
	return WriteJobFunc(func(ctx context.Context, pool *pgxpool.Pool) error {
		_, err := pool.CopyFrom(ctx,
			pgx.Identifier{"stream_frames"},
			[]string{"ts", "subject_id", "run_id", "frame_index", "frame_type", "payload", "raw_bytes"},
			pgx.CopyFromRows(frameRows(subjectID, runID, frames)),
		)
		return err
	})
}

func frameRows(subjectID string, runID uuid.UUID, frames []FrameRecord) [][]any {
	rows := make([][]any, len(frames))
	for i, fr := range frames {
		payload := fr.Frame.Payload()
		rows[i] = []any{
			fr.Timestamp,
			subjectID,
			runID,
			fr.Index,
			fr.Frame.Type(),
			[]byte(payload),
			len(payload),
		}
	}
	return rows
}
