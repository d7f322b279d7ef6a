package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// WriteJob represents a unit of work to execute against the database.
type WriteJob interface {
	Execute(ctx context.Context, pool *pgxpool.Pool) error
}

// WriteJobFunc adapts a function into a WriteJob.
type WriteJobFunc func(ctx context.Context, pool *pgxpool.Pool) error

func (f WriteJobFunc) Execute(ctx context.Context, pool *pgxpool.Pool) error {
	return f(ctx, pool)
}

type WriterConfig struct {
	BufferSize int
	BatchSize  int
	FlushEvery time.Duration
	JobTimeout time.Duration
}

func (c WriterConfig) withDefaults() WriterConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = 10000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushEvery <= 0 {
		c.FlushEvery = 100 * time.Millisecond
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 10 * time.Second
	}
	return c
}

// BatchWriter collects write jobs off the stream path and flushes them in
// batches. Enqueue never blocks; jobs are dropped when the queue is full.
type BatchWriter struct {
	pool    *pgxpool.Pool
	jobs    chan WriteJob
	cfg     WriterConfig
	dropped atomic.Int64
	failed  atomic.Int64

	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewBatchWriter(pool *pgxpool.Pool, cfg WriterConfig) *BatchWriter {
	cfg = cfg.withDefaults()
	w := &BatchWriter{
		pool: pool,
		jobs: make(chan WriteJob, cfg.BufferSize),
		cfg:  cfg,
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

func (w *BatchWriter) Enqueue(job WriteJob) {
	select {
	case w.jobs <- job:
	default:
		w.dropped.Add(1)
		log.Warn().Msg("write queue full, dropping job")
	}
}

// Dropped returns the number of jobs discarded because the queue was full.
func (w *BatchWriter) Dropped() int64 { return w.dropped.Load() }

// Failed returns the number of jobs that returned an error.
func (w *BatchWriter) Failed() int64 { return w.failed.Load() }

func (w *BatchWriter) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushEvery)
	defer ticker.Stop()

	batch := make([]WriteJob, 0, w.cfg.BatchSize)

	for {
		select {
		case job, ok := <-w.jobs:
			if !ok {
				w.flush(batch)
				return
			}
			batch = append(batch, job)
			if len(batch) >= w.cfg.BatchSize {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (w *BatchWriter) flush(batch []WriteJob) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.JobTimeout)
	defer cancel()

	for _, job := range batch {
		if err := job.Execute(ctx, w.pool); err != nil {
			w.failed.Add(1)
			log.Error().Err(err).Msg("write job failed")
		}
	}
}

// Shutdown flushes queued jobs and stops the writer. Enqueue must not be
// called afterwards.
func (w *BatchWriter) Shutdown() {
	w.closeOnce.Do(func() { close(w.jobs) })
	w.wg.Wait()
}
