package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/veridica/internal/model"
	"github.com/ppiankov/veridica/internal/store"
)

// Enqueuer hands a job off for execution. The queue package implements
// this over asynq; the CLI uses a synchronous in-process variant.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string) error
}

// Manager owns the job lifecycle around the runner: creation with
// idempotency and single-flight, resume with overrides, status reads.
type Manager struct {
	store    *store.Store
	enqueuer Enqueuer
	log      *zap.Logger
}

// NewManager creates a job manager.
func NewManager(st *store.Store, enqueuer Enqueuer, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{store: st, enqueuer: enqueuer, log: log}
}

// IdempotencyKey derives a stable key from the request identity. A
// repeated POST of the same document with the same parameters maps to
// the same key and therefore the same in-flight job.
func IdempotencyKey(projectID, filename string, params model.JobParams) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|%s",
		projectID, filename, params.URL, params.Tone, params.Audience, params.Provider, params.Model)
	return hex.EncodeToString(h.Sum(nil))
}

// StartJob creates and enqueues a pipeline run. pdf may be nil when the
// run ingests only a URL. Returns the existing job when the idempotency
// key matches an in-flight run; returns ErrProjectBusy when the project
// already has a different active job.
func (m *Manager) StartJob(ctx context.Context, projectID, filename string, pdf []byte, params model.JobParams) (*model.PipelineJob, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project id is required")
	}
	if len(pdf) == 0 && params.URL == "" {
		return nil, fmt.Errorf("either a document or a url is required")
	}

	key := IdempotencyKey(projectID, filename, params)
	if existing, err := m.store.GetJobByIdempotencyKey(key); err != nil {
		return nil, err
	} else if existing != nil {
		m.log.Info("idempotent replay, returning in-flight job",
			zap.String("job_id", existing.JobID), zap.String("project_id", projectID))
		return existing, nil
	}

	if active, err := m.store.ActiveJobForProject(projectID); err != nil {
		return nil, err
	} else if active != nil {
		return nil, fmt.Errorf("project %s: %w", projectID, model.ErrProjectBusy)
	}

	if err := m.store.CreateProject(projectID, projectID); err != nil {
		return nil, err
	}
	if len(pdf) > 0 {
		dir, err := m.store.ProjectDir(projectID)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(filepath.Join(dir, SourceFileName), pdf, 0o644); err != nil {
			return nil, fmt.Errorf("saving source document: %w", err)
		}
	}

	job := &model.PipelineJob{
		JobID:          uuid.NewString(),
		ProjectID:      projectID,
		IdempotencyKey: key,
		Status:         model.StatusQueued,
		Stage:          model.StageQueued,
		Params:         params,
	}
	if err := m.store.CreateJob(job); err != nil {
		return nil, err
	}
	if err := m.enqueuer.Enqueue(ctx, job.JobID); err != nil {
		return nil, fmt.Errorf("enqueueing job: %w", err)
	}
	m.log.Info("job started", zap.String("job_id", job.JobID), zap.String("project_id", projectID))
	return job, nil
}

// ResumeOverrides are the only job inputs mutable after creation.
type ResumeOverrides struct {
	ProceedWithAssumptions bool
	AllowUnsafe            bool
}

// Resume requeues a paused job. Only preflight_blocked jobs resume;
// terminal jobs are immutable and running jobs need no help.
func (m *Manager) Resume(ctx context.Context, jobID string, overrides ResumeOverrides) (*model.PipelineJob, error) {
	job, err := m.store.GetJob(jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s not found", jobID)
	}
	if job.Status.Terminal() {
		return nil, fmt.Errorf("job %s: %w", jobID, model.ErrJobTerminal)
	}
	if job.Status != model.StatusPreflightBlocked {
		return nil, fmt.Errorf("job %s is %s, only preflight_blocked jobs can be resumed", jobID, job.Status)
	}

	if overrides.ProceedWithAssumptions {
		job.Params.ProceedWithAssumptions = true
	}
	if overrides.AllowUnsafe {
		job.Params.AllowUnsafe = true
	}
	job.Status = model.StatusQueued
	job.StageDetail = "resumed"
	if err := m.store.UpdateJob(job); err != nil {
		return nil, err
	}
	if err := m.enqueuer.Enqueue(ctx, job.JobID); err != nil {
		return nil, fmt.Errorf("enqueueing job: %w", err)
	}
	m.log.Info("job resumed", zap.String("job_id", jobID),
		zap.Bool("proceed_with_assumptions", job.Params.ProceedWithAssumptions),
		zap.Bool("allow_unsafe", job.Params.AllowUnsafe))
	return job, nil
}

// Status returns the job row plus the preflight report when the job is
// paused on it.
func (m *Manager) Status(jobID string) (*model.PipelineJob, *model.PreflightReport, error) {
	job, err := m.store.GetJob(jobID)
	if err != nil {
		return nil, nil, err
	}
	if job == nil {
		return nil, nil, fmt.Errorf("job %s not found", jobID)
	}

	var report *model.PreflightReport
	if job.Status == model.StatusPreflightBlocked {
		var pr model.PreflightReport
		ok, err := m.store.GetStageOutput(jobID, stagePreflight, &pr)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			report = &pr
		}
	}
	return job, report, nil
}
