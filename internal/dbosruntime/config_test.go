package dbosruntime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithDefaults(t *testing.T) {
	cfg := Config{}
	cfg.WithDefaults()
	assert.Equal(t, "detect", cfg.QueueName)

	cfg = Config{QueueName: "custom"}
	cfg.WithDefaults()
	assert.Equal(t, "custom", cfg.QueueName)
}

func TestWithDefaultsKeepsClientMode(t *testing.T) {
	// Zero concurrency is meaningful (enqueue-only process), defaults must
	// not promote it to a worker.
	cfg := Config{Concurrency: 0}
	cfg.WithDefaults()
	assert.Equal(t, 0, cfg.Concurrency)
}

func TestWithDefaultsKeepsApplicationVersion(t *testing.T) {
	cfg := Config{ApplicationVersion: "lep-pipeline"}
	cfg.WithDefaults()
	assert.Equal(t, "lep-pipeline", cfg.ApplicationVersion)
}
