package dbosruntime

// Config holds the durable queue runtime configuration.
type Config struct {
	// DatabaseURL is the PostgreSQL connection string for queue state.
	DatabaseURL string

	// AppName identifies this process in the queue's bookkeeping.
	AppName string

	// QueueName is the workflow queue jobs are enqueued on.
	// Optional, defaults to "detect".
	QueueName string

	// Concurrency is the number of workers this process runs. Zero means
	// client mode: the process can enqueue jobs but never executes them.
	Concurrency int

	// ApplicationVersion overrides the default binary hash for version
	// matching. The queue only hands a job to a process whose version matches
	// the enqueuer's, so the API and worker binaries must share one value.
	ApplicationVersion string
}

// WithDefaults fills in default values for optional fields.
func (c *Config) WithDefaults() {
	if c.QueueName == "" {
		c.QueueName = "detect"
	}
}
