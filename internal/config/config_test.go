package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "detect", cfg.Queue.Name)
	assert.Equal(t, 4, cfg.Queue.Concurrency)
	assert.Equal(t, 300*time.Second, cfg.Queue.SoftTimeout())
	assert.Equal(t, 360*time.Second, cfg.Queue.HardTimeout())
	assert.Equal(t, time.Hour, cfg.S3.PresignDuration())
	assert.False(t, cfg.GPSFallback.Enabled)
}

func TestLoadQueueURLFallsBackToDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://primary:5432/lep")
	t.Setenv("QUEUE_DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://primary:5432/lep", cfg.Queue.DatabaseURL)
}

func TestLoadQueueAppVersionSharedAcrossProcesses(t *testing.T) {
	// Both binaries load the same config, so with no override they agree on
	// the version stamped on enqueued jobs. A mismatch would leave every job
	// stuck: the queue only delivers a job to a process whose application
	// version matches the enqueuer's.
	apiCfg, err := Load()
	require.NoError(t, err)
	workerCfg, err := Load()
	require.NoError(t, err)

	assert.NotEmpty(t, apiCfg.Queue.AppVersion)
	assert.Equal(t, apiCfg.Queue.AppVersion, workerCfg.Queue.AppVersion)

	t.Setenv("QUEUE_APP_VERSION", "2026.08")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "2026.08", cfg.Queue.AppVersion)
}
