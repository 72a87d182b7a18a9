// Package queue runs pipeline jobs in the background over asynq. The
// queue only carries job ids; all state lives in the store, so a task
// retry or a worker restart resumes the job instead of restarting it.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/ppiankov/veridica/internal/model"
	"github.com/ppiankov/veridica/internal/pipeline"
)

// TypePipelineRun is the asynq task type for one pipeline execution.
const TypePipelineRun = "pipeline:run"

const taskTimeout = 30 * time.Minute

type runPayload struct {
	JobID string `json:"job_id"`
}

// Client enqueues pipeline runs. Implements pipeline.Enqueuer.
type Client struct {
	client *asynq.Client
}

// NewClient creates an enqueue-side client.
func NewClient(cfg model.QueueConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB}),
	}
}

// Enqueue schedules a job for execution.
func (c *Client) Enqueue(ctx context.Context, jobID string) error {
	payload, err := json.Marshal(runPayload{JobID: jobID})
	if err != nil {
		return fmt.Errorf("marshaling task payload: %w", err)
	}
	task := asynq.NewTask(TypePipelineRun, payload)
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(3),
		asynq.Timeout(taskTimeout),
		asynq.Retention(24*time.Hour))
	if err != nil {
		return fmt.Errorf("enqueueing task: %w", err)
	}
	return nil
}

// Close releases the redis connection.
func (c *Client) Close() error { return c.client.Close() }

// Worker consumes pipeline tasks.
type Worker struct {
	server *asynq.Server
	runner *pipeline.Runner
	mirror *StatusMirror
	log    *zap.Logger
}

// NewWorker creates a worker bound to the runner. mirror may be nil.
func NewWorker(cfg model.QueueConfig, runner *pipeline.Runner, mirror *StatusMirror, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: concurrency,
			Queues:      map[string]int{"default": 1},
		},
	)
	return &Worker{server: server, runner: runner, mirror: mirror, log: log}
}

// Run blocks processing tasks until Shutdown.
func (w *Worker) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePipelineRun, w.handleRun)
	return w.server.Run(mux)
}

// Shutdown stops the worker gracefully.
func (w *Worker) Shutdown() { w.server.Shutdown() }

// handleRun executes one pipeline run. Retryable infrastructure errors
// leave the job non-terminal (the runner requeues it in the store), so
// bouncing them back to asynq resumes the job at the failed stage.
// Everything else is already absorbed as terminal failed; retrying the
// task would just hit the terminal-state no-op.
func (w *Worker) handleRun(ctx context.Context, task *asynq.Task) error {
	var payload runPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshaling task payload: %v: %w", err, asynq.SkipRetry)
	}

	err := w.runner.Run(ctx, payload.JobID)
	w.publishSnapshot(ctx, payload.JobID)
	if err != nil {
		if model.Retryable(err) {
			return err
		}
		w.log.Error("pipeline run failed", zap.String("job_id", payload.JobID), zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return nil
}

func (w *Worker) publishSnapshot(ctx context.Context, jobID string) {
	if w.mirror == nil {
		return
	}
	if err := w.mirror.PublishFromStore(ctx, jobID); err != nil {
		w.log.Warn("publishing status snapshot", zap.String("job_id", jobID), zap.Error(err))
	}
}
