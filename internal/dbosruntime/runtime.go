// Package dbosruntime manages the lifecycle of the durable task queue.
package dbosruntime

import (
	"context"
	"errors"
	"time"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	_ "github.com/lib/pq"
)

// Runtime wraps the DBOS context and the workflow queue. The same runtime
// type serves both processes: the API runs it in client mode (Concurrency 0,
// enqueue only), the worker runs it with workers attached.
type Runtime struct {
	dbosContext dbos.DBOSContext
	queue       *dbos.WorkflowQueue
	config      Config
}

// NewRuntime initializes the queue runtime. Workflows must be registered
// before Launch is called.
func NewRuntime(ctx context.Context, cfg Config) (*Runtime, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("queue database URL is required")
	}
	cfg.WithDefaults()

	dbosCtx, err := dbos.NewDBOSContext(ctx, dbos.Config{
		DatabaseURL:        cfg.DatabaseURL,
		AppName:            cfg.AppName,
		ApplicationVersion: cfg.ApplicationVersion,
	})
	if err != nil {
		return nil, err
	}

	queue := dbos.NewWorkflowQueue(dbosCtx, cfg.QueueName,
		dbos.WithWorkerConcurrency(cfg.Concurrency))

	return &Runtime{
		dbosContext: dbosCtx,
		queue:       &queue,
		config:      cfg,
	}, nil
}

// Launch starts the runtime and, in worker mode, its workers.
func (r *Runtime) Launch() error {
	return dbos.Launch(r.dbosContext)
}

// Shutdown gracefully stops the runtime.
func (r *Runtime) Shutdown(timeout time.Duration) {
	dbos.Shutdown(r.dbosContext, timeout)
}

// Context returns the underlying DBOS context.
func (r *Runtime) Context() dbos.DBOSContext {
	return r.dbosContext
}

// QueueName returns the configured queue name.
func (r *Runtime) QueueName() string {
	return r.config.QueueName
}

// Concurrency returns the configured worker concurrency.
func (r *Runtime) Concurrency() int {
	return r.config.Concurrency
}
