// Package pipeline orchestrates the multi-stage run: ingest, fact sheet
// extraction, audit, content generation. The job row is the single
// source of truth for state; each stage's output is persisted before the
// stage transition is recorded, so a crashed or requeued job resumes at
// the last completed stage instead of repeating work.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ppiankov/veridica/internal/generate"
	"github.com/ppiankov/veridica/internal/ingest"
	"github.com/ppiankov/veridica/internal/model"
	"github.com/ppiankov/veridica/internal/schema"
	"github.com/ppiankov/veridica/internal/store"
	"github.com/ppiankov/veridica/internal/verify"
)

// SourceFileName is where the uploaded document lives inside the project
// directory. The job row never carries file paths.
const SourceFileName = "source.pdf"

// stagePreflight keys the persisted preflight report in stage_outputs.
// Not part of the forward stage order; the pause is a status, not a stage.
const stagePreflight = model.Stage("preflight")

// Progress milestones at the start of each stage. Within a stage the
// runner only moves progress forward; the store clamps regressions.
const (
	progressIngest    = 5
	progressFactsheet = 30
	progressAudit     = 55
	progressContent   = 80
	progressDone      = 100
)

// SheetExtractor produces a fact sheet from chunks.
type SheetExtractor interface {
	Extract(ctx context.Context, projectID string, chunks []model.Chunk) (*model.FactSheet, error)
}

// ClaimVerifier checks a batch of claims.
type ClaimVerifier interface {
	VerifyAll(ctx context.Context, projectID string, claims []model.Claim, pass string) ([]model.VerificationResult, error)
}

// ContentGenerator produces the audit report and the content bundle.
type ContentGenerator interface {
	Audit(ctx context.Context, projectID string, sheet *model.FactSheet) (*generate.AuditReport, error)
	Generate(ctx context.Context, projectID string, sheet *model.FactSheet, types []schema.ContentType, params generate.Params, assumptions []string) (*generate.ContentBundle, error)
}

// Scraper fetches a product page's visible text.
type Scraper interface {
	Scrape(ctx context.Context, rawURL string) (string, error)
}

// IngestOutput is the persisted result of the ingest stage.
type IngestOutput struct {
	ChunkCount int      `json:"chunk_count"`
	DocIDs     []string `json:"doc_ids"`
}

// ContentOutput is the persisted result of the content stage. The
// assumption list is stamped by the runner, not taken from the model's
// echo, so a run that proceeded past preflight always records what it
// proceeded without.
type ContentOutput struct {
	Bundle      *generate.ContentBundle    `json:"bundle"`
	Results     []model.VerificationResult `json:"results"`
	Assumptions []string                   `json:"assumptions,omitempty"`
	Unsafe      bool                       `json:"unsafe,omitempty"` // released despite failed verification
}

// Runner executes one job to completion, pause, or failure.
type Runner struct {
	store     *store.Store
	scraper   Scraper
	chunker   *ingest.Chunker
	extractor SheetExtractor
	verifier  ClaimVerifier
	generator ContentGenerator
	log       *zap.Logger
}

// NewRunner wires the stage implementations together.
func NewRunner(st *store.Store, scraper Scraper, chunker *ingest.Chunker,
	extractor SheetExtractor, verifier ClaimVerifier, generator ContentGenerator,
	log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		store: st, scraper: scraper, chunker: chunker,
		extractor: extractor, verifier: verifier, generator: generator,
		log: log,
	}
}

// Run drives a job through the remaining stages. Completed stages are
// skipped via their persisted outputs, so Run is safe to call again on a
// requeued or restarted job. Terminal jobs are left untouched.
func (r *Runner) Run(ctx context.Context, jobID string) error {
	job, err := r.store.GetJob(jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s not found", jobID)
	}
	if job.Status.Terminal() {
		r.log.Info("job already terminal", zap.String("job_id", jobID), zap.String("status", string(job.Status)))
		return nil
	}

	done, err := r.store.CompletedStages(jobID)
	if err != nil {
		return err
	}

	job.Status = model.StatusRunning
	if err := r.store.UpdateJob(job); err != nil {
		return err
	}
	log := r.log.With(zap.String("job_id", jobID), zap.String("project_id", job.ProjectID))

	if !done[model.StageIngest] {
		if err := r.runIngest(ctx, job); err != nil {
			return r.fail(job, model.StageIngest, err)
		}
	}

	sheet, err := r.loadOrExtractSheet(ctx, job, done)
	if err != nil {
		return r.fail(job, model.StageFactsheet, err)
	}

	// The gate sits on the factsheet -> audit transition: no further
	// reasoning call runs against an incomplete sheet the caller has not
	// waived.
	report := worstPreflight(sheet)
	if err := r.store.SaveStageOutput(job.JobID, stagePreflight, report); err != nil {
		return r.fail(job, model.StageFactsheet, err)
	}
	var assumptions []string
	if !report.CanGenerate {
		if !job.Params.ProceedWithAssumptions {
			job.Status = model.StatusPreflightBlocked
			job.StageDetail = fmt.Sprintf("blocked: %d field(s) missing, answer the preflight questions or resume with proceed_with_assumptions",
				len(report.MissingFields))
			if err := r.store.UpdateJob(job); err != nil {
				return err
			}
			log.Info("job paused for preflight", zap.Int("missing_fields", len(report.MissingFields)))
			return nil
		}
		for _, q := range report.Questions {
			assumptions = append(assumptions,
				fmt.Sprintf("%s was not established by the sources; the draft proceeds without it", q.Field))
		}
	}

	if !done[model.StageAudit] {
		if err := r.runAudit(ctx, job, sheet); err != nil {
			return r.fail(job, model.StageAudit, err)
		}
	}

	if !done[model.StageContent] {
		if err := r.runContent(ctx, job, sheet, assumptions); err != nil {
			return r.fail(job, model.StageContent, err)
		}
	}

	job.Status = model.StatusSucceeded
	job.Stage = model.StageDone
	job.Progress = progressDone
	job.StageDetail = "complete"
	if err := r.store.UpdateJob(job); err != nil {
		return err
	}
	log.Info("job succeeded")
	return nil
}

func (r *Runner) advance(job *model.PipelineJob, stage model.Stage, progress int, detail string) error {
	job.Stage = stage
	job.Progress = progress
	job.StageDetail = detail
	return r.store.UpdateJob(job)
}

// fail records the failure. Retryable infrastructure errors leave the
// job non-terminal so a requeued task resumes at this stage; everything
// else is absorbed into terminal failed. The stored error message is the
// user-visible failure contract, so it carries the underlying cause.
func (r *Runner) fail(job *model.PipelineJob, stage model.Stage, cause error) error {
	r.log.Error("stage failed",
		zap.String("job_id", job.JobID),
		zap.String("stage", string(stage)),
		zap.Error(cause))
	if model.Retryable(cause) {
		job.Status = model.StatusQueued
	} else {
		job.Status = model.StatusFailed
	}
	job.Stage = stage
	job.ErrorMessage = cause.Error()
	if err := r.store.UpdateJob(job); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (r *Runner) runIngest(ctx context.Context, job *model.PipelineJob) error {
	if err := r.advance(job, model.StageIngest, progressIngest, "parsing source documents"); err != nil {
		return err
	}

	var chunks []model.Chunk
	var docIDs []string

	dir, err := r.store.ProjectDir(job.ProjectID)
	if err != nil {
		return err
	}
	pdfPath := filepath.Join(dir, SourceFileName)
	if _, err := os.Stat(pdfPath); err == nil {
		pages, err := ingest.ParsePDF(pdfPath)
		if err != nil {
			return err
		}
		docID := job.ProjectID + "-pdf"
		chunks = append(chunks, r.chunker.ChunkPDF(docID, SourceFileName, pages)...)
		docIDs = append(docIDs, docID)
	}

	if job.Params.URL != "" && r.scraper != nil {
		text, err := r.scraper.Scrape(ctx, job.Params.URL)
		if err != nil {
			return err
		}
		docID := job.ProjectID + "-url"
		chunks = append(chunks, r.chunker.ChunkURL(docID, job.Params.URL, text)...)
		docIDs = append(docIDs, docID)
	}

	if len(chunks) == 0 {
		return model.ErrEmptyDocument
	}

	existing, err := r.store.ListChunks(job.ProjectID)
	if err != nil {
		return err
	}
	if !sameChunks(existing, chunks) {
		if err := r.store.ReplaceChunks(job.ProjectID, chunks); err != nil {
			return err
		}
	}

	return r.store.SaveStageOutput(job.JobID, model.StageIngest,
		IngestOutput{ChunkCount: len(chunks), DocIDs: docIDs})
}

// sameChunks reports whether the stored set already matches the freshly
// chunked document, which happens when a crashed run resumes before its
// stage record landed. A changed document replaces the set: grounding
// new facts in stale text is worse than letting old citations dangle.
func sameChunks(stored, fresh []model.Chunk) bool {
	if len(stored) != len(fresh) {
		return false
	}
	byID := make(map[string]string, len(stored))
	for _, c := range stored {
		byID[c.ID] = c.Text
	}
	for _, c := range fresh {
		if text, ok := byID[c.ID]; !ok || text != c.Text {
			return false
		}
	}
	return true
}

// loadOrExtractSheet returns the fact sheet, extracting it if the stage
// has not completed yet.
func (r *Runner) loadOrExtractSheet(ctx context.Context, job *model.PipelineJob, done map[model.Stage]bool) (*model.FactSheet, error) {
	if done[model.StageFactsheet] {
		sheet, err := r.store.GetFactSheet(job.ProjectID)
		if err != nil {
			return nil, err
		}
		if sheet != nil {
			return sheet, nil
		}
		// Stage record without a sheet means a partial write; re-extract.
	}

	if err := r.advance(job, model.StageFactsheet, progressFactsheet, "extracting fact sheet"); err != nil {
		return nil, err
	}

	chunks, err := r.store.ListChunks(job.ProjectID)
	if err != nil {
		return nil, err
	}
	sheet, err := r.extractor.Extract(ctx, job.ProjectID, chunks)
	if err != nil {
		return nil, err
	}
	if err := r.store.SaveFactSheet(sheet); err != nil {
		return nil, err
	}
	if err := r.store.SaveStageOutput(job.JobID, model.StageFactsheet, sheet); err != nil {
		return nil, err
	}
	job.HasFactsheet = true
	return sheet, r.store.UpdateJob(job)
}

func (r *Runner) runAudit(ctx context.Context, job *model.PipelineJob, sheet *model.FactSheet) error {
	if err := r.advance(job, model.StageAudit, progressAudit, "auditing source quality"); err != nil {
		return err
	}

	report, err := r.generator.Audit(ctx, job.ProjectID, sheet)
	if err != nil {
		return err
	}
	results, err := r.verifier.VerifyAll(ctx, job.ProjectID, report.Claims, "audit")
	if err != nil {
		return err
	}
	if err := r.store.AppendVerifications(job.JobID, results); err != nil {
		return err
	}

	if err := r.store.SaveStageOutput(job.JobID, model.StageAudit, report); err != nil {
		return err
	}
	job.HasAudit = true
	return r.store.UpdateJob(job)
}

// runContent drafts the bundle and verifies its claims. The preflight
// gate has already passed (or been waived) by the time this runs.
func (r *Runner) runContent(ctx context.Context, job *model.PipelineJob, sheet *model.FactSheet, assumptions []string) error {
	if err := r.advance(job, model.StageContent, progressContent, "generating content"); err != nil {
		return err
	}

	bundle, err := r.generator.Generate(ctx, job.ProjectID, sheet, schema.AllContentTypes,
		generate.Params{Tone: job.Params.Tone, Audience: job.Params.Audience}, assumptions)
	if err != nil {
		return err
	}

	results, err := r.verifier.VerifyAll(ctx, job.ProjectID, bundle.Claims(), "content")
	if err != nil {
		return err
	}
	if err := r.store.AppendVerifications(job.JobID, results); err != nil {
		return err
	}

	output := ContentOutput{Bundle: bundle, Results: results, Assumptions: assumptions}
	if offending := verify.Offending(results); len(offending) > 0 {
		if !job.Params.AllowUnsafe {
			return &model.UnverifiedClaimsError{Results: offending}
		}
		output.Unsafe = true
		r.log.Warn("releasing content with unverified claims",
			zap.String("job_id", job.JobID),
			zap.Int("offending", len(offending)))
	}

	if err := r.store.SaveStageOutput(job.JobID, model.StageContent, output); err != nil {
		return err
	}
	job.HasContent = true
	return r.store.UpdateJob(job)
}

// worstPreflight merges the per-type reports: a field critical for any
// requested content type blocks the whole generation pass.
func worstPreflight(sheet *model.FactSheet) model.PreflightReport {
	merged := model.PreflightReport{
		MissingFields: []string{},
		Questions:     []model.PreflightQuestion{},
		CanGenerate:   true,
	}
	seen := make(map[string]bool)
	for _, ct := range schema.AllContentTypes {
		report := verify.Preflight(sheet, ct)
		if !report.CanGenerate {
			merged.CanGenerate = false
		}
		for i, field := range report.MissingFields {
			if seen[field] {
				continue
			}
			seen[field] = true
			merged.MissingFields = append(merged.MissingFields, field)
			merged.Questions = append(merged.Questions, report.Questions[i])
		}
	}
	return merged
}
