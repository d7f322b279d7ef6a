package config_test

import (
	"testing"

	"github.com/namikmesic/sidekick-stream/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "<think>", cfg.ReasoningOpenTag)
	assert.Equal(t, "</think>", cfg.ReasoningCloseTag)
	assert.Equal(t, 32768, cfg.ReadBufferSize)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SIDEKICK_API_URL", "https://assistant.example.com/api")
	t.Setenv("REASONING_OPEN_TAG", "<thinking>")
	t.Setenv("WRITER_BATCH_SIZE", "5")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://assistant.example.com/api", cfg.APIBaseURL)
	assert.Equal(t, "<thinking>", cfg.ReasoningOpenTag)
	assert.Equal(t, 5, cfg.WriterBatchSize)
}

func TestLoad_InvalidNumber(t *testing.T) {
	t.Setenv("READ_BUFFER_SIZE", "lots")
	_, err := config.Load()
	assert.Error(t, err)
}
