package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/namikmesic/sidekick-stream/internal/config"
	"github.com/namikmesic/sidekick-stream/internal/inference"
	"github.com/namikmesic/sidekick-stream/internal/jetstream"
	"github.com/namikmesic/sidekick-stream/internal/storage"
	nats "github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// app holds the shared infrastructure of a command. Every part is optional
// and torn down in reverse order by close.
type app struct {
	pool    *pgxpool.Pool
	writer  *storage.BatchWriter
	nats    *jetstream.Server
	nc      *nats.Conn
	js      nats.JetStreamContext
	metrics *http.Server
}

func newApp(ctx context.Context, cfg *config.Config, withBus bool) (*app, error) {
	a := &app{}

	if cfg.DatabaseURL != "" {
		pool, err := storage.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.pool = pool
		if err := storage.RunMigrations(ctx, pool); err != nil {
			a.close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		a.writer = storage.NewBatchWriter(pool, storage.WriterConfig{
			BufferSize: cfg.WriterBufferSize,
			BatchSize:  cfg.WriterBatchSize,
			FlushEvery: time.Duration(cfg.WriterFlushMs) * time.Millisecond,
		})
	}

	if withBus {
		ns, err := jetstream.NewServer(cfg.NATSStoreDir)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("start embedded NATS: %w", err)
		}
		a.nats = ns

		nc, err := ns.Connect()
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect to embedded NATS: %w", err)
		}
		a.nc = nc

		js, err := nc.JetStream()
		if err != nil {
			a.close()
			return nil, fmt.Errorf("get JetStream context: %w", err)
		}
		if err := jetstream.EnsureStream(js); err != nil {
			a.close()
			return nil, fmt.Errorf("create JetStream stream: %w", err)
		}
		a.js = js
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		a.metrics = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics server error")
			}
		}()
	}

	return a, nil
}

// recorder returns the inference recorders available to this app.
func (a *app) recorder() inference.Recorder {
	rs := inference.Recorders{inference.PrometheusRecorder{}}
	if a.writer != nil {
		rs = append(rs, storage.NewCallRecorder(a.writer))
	}
	return rs
}

func (a *app) close() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		a.metrics.Shutdown(ctx)
		cancel()
	}
	if a.nc != nil {
		a.nc.Drain()
	}
	if a.nats != nil {
		a.nats.Shutdown()
	}
	if a.writer != nil {
		a.writer.Shutdown()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
