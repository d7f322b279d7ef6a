package config

import (
	"github.com/caarlos0/env/v11"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	APIBaseURL string `env:"SIDEKICK_API_URL" envDefault:"http://localhost:8080/api"`
	APIKey     string `env:"SIDEKICK_API_KEY"`
	Model      string `env:"SIDEKICK_MODEL" envDefault:"default"`

	// DatabaseURL enables the frame and inference audit log when set.
	DatabaseURL  string `env:"DATABASE_URL"`
	NATSStoreDir string `env:"NATS_STORE_DIR" envDefault:"./data/nats"`
	// MetricsAddr serves /metrics when set.
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9464"`

	ReasoningOpenTag  string `env:"REASONING_OPEN_TAG" envDefault:"<think>"`
	ReasoningCloseTag string `env:"REASONING_CLOSE_TAG" envDefault:"</think>"`
	ReadBufferSize    int    `env:"READ_BUFFER_SIZE" envDefault:"32768"`

	WriterBufferSize int `env:"WRITER_BUFFER_SIZE" envDefault:"10000"`
	WriterBatchSize  int `env:"WRITER_BATCH_SIZE" envDefault:"100"`
	WriterFlushMs    int `env:"WRITER_FLUSH_MS" envDefault:"100"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
