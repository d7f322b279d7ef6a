package inference

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Call runs one non-streamed inference call and records its outcome. The
// error fn returns is handed back unchanged, whatever the recorder does.
func Call[T any](ctx context.Context, model string, rec Recorder, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	out, err := fn(ctx)
	d := time.Since(start)

	if rec == nil {
		return out, err
	}
	if err != nil {
		category := Classify(err)
		safely(func() { rec.RecordFailure(model, category, d, err) })
		log.Debug().Err(err).
			Str("model", model).
			Str("category", string(category)).
			Dur("duration", d).
			Msg("inference call failed")
		return out, err
	}
	safely(func() { rec.RecordSuccess(model, d) })
	return out, nil
}

// safely runs a metrics call and discards any panic it raises.
func safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("metrics recording failed")
		}
	}()
	fn()
}
