// Package workflows runs inference jobs pulled from the durable task queue.
package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dbos-inc/dbos-transact-golang/dbos"

	"github.com/Artem468/hakaton-ml-lep/internal/dbosruntime"
	"github.com/Artem468/hakaton-ml-lep/internal/metrics"
	"github.com/Artem468/hakaton-ml-lep/pkg/pipeline"
)

// WorkflowContext carries one job through a workflow.
type WorkflowContext struct {
	Ctx     context.Context
	Request pipeline.DetectRequest
	RunID   string
}

// Workflow processes one inference job. Execute never panics or returns an
// error: failures come back inside the result payload.
type Workflow interface {
	Execute(wctx *WorkflowContext) *pipeline.DetectResult
	Name() string
}

// Runner executes registered workflows, either synchronously or through the
// durable queue. Jobs run under a soft time limit (context deadline) with a
// slightly longer hard limit as a last-resort kill.
type Runner struct {
	workflows map[string]Workflow
	runtime   *dbosruntime.Runtime
	soft      time.Duration
	hard      time.Duration
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// NewRunner creates a runner bound to the queue runtime. runtime may be nil
// for purely synchronous use in tests.
func NewRunner(runtime *dbosruntime.Runtime, soft, hard time.Duration, m *metrics.Metrics, log *slog.Logger) *Runner {
	r := &Runner{
		workflows: make(map[string]Workflow),
		runtime:   runtime,
		soft:      soft,
		hard:      hard,
		metrics:   m,
		log:       log,
	}
	if runtime != nil {
		dbos.RegisterWorkflow(runtime.Context(), r.executeDetect)
	}
	return r
}

// Register registers a workflow under a job name.
func (r *Runner) Register(job string, workflow Workflow) {
	r.workflows[job] = workflow
}

// DispatchDetect enqueues one detection job and returns its run id without
// waiting for the outcome. Implements the upload service's Dispatcher.
func (r *Runner) DispatchDetect(ctx context.Context, req pipeline.DetectRequest) (string, error) {
	if r.runtime == nil {
		return "", errors.New("queue runtime not initialized")
	}

	workflowID := fmt.Sprintf("%s-%s-%d", pipeline.JobDetect, req.FileKey, time.Now().UnixNano())
	handle, err := dbos.RunWorkflow[pipeline.DetectRequest, *pipeline.DetectResult](
		r.runtime.Context(),
		r.executeDetect,
		req,
		dbos.WithWorkflowID(workflowID),
		dbos.WithQueue(r.runtime.QueueName()),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue detect job: %w", err)
	}
	if r.metrics != nil {
		r.metrics.JobsDispatched.Inc()
	}
	return handle.GetWorkflowID(), nil
}

// executeDetect is the queue-side workflow function.
func (r *Runner) executeDetect(dbosCtx dbos.DBOSContext, req pipeline.DetectRequest) (*pipeline.DetectResult, error) {
	workflowID, err := dbosCtx.GetWorkflowID()
	if err != nil {
		workflowID = req.FileKey
	}
	return r.Run(dbosCtx, workflowID, req), nil
}

// Run executes the registered workflow for the request's job type under the
// configured time limits. The result always comes back as data; a job that
// outlives the hard limit is abandoned and reported as timed out.
func (r *Runner) Run(ctx context.Context, runID string, req pipeline.DetectRequest) *pipeline.DetectResult {
	workflow, ok := r.workflows[pipeline.JobDetect]
	if !ok {
		return &pipeline.DetectResult{FileKey: req.FileKey, Error: ErrWorkflowNotFound.Error()}
	}

	jobCtx := ctx
	var cancel context.CancelFunc
	if r.soft > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, r.soft)
		defer cancel()
	}

	wctx := &WorkflowContext{Ctx: jobCtx, Request: req, RunID: runID}
	start := time.Now()

	done := make(chan *pipeline.DetectResult, 1)
	go func() {
		done <- workflow.Execute(wctx)
	}()

	var res *pipeline.DetectResult
	if r.hard > 0 {
		select {
		case res = <-done:
		case <-time.After(r.hard):
			r.log.Error("job exceeded hard time limit, abandoning", "run_id", runID, "file_key", req.FileKey)
			res = &pipeline.DetectResult{FileKey: req.FileKey, Error: ErrTimeout.Error()}
		}
	} else {
		res = <-done
	}

	if r.metrics != nil {
		r.metrics.JobDuration.Observe(time.Since(start).Seconds())
		if res.Error != "" {
			r.metrics.JobsFailed.Inc()
		} else {
			r.metrics.JobsCompleted.Inc()
		}
	}
	return res
}
