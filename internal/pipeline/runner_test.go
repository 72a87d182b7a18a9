package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/veridica/internal/generate"
	"github.com/ppiankov/veridica/internal/ingest"
	"github.com/ppiankov/veridica/internal/model"
	"github.com/ppiankov/veridica/internal/schema"
	"github.com/ppiankov/veridica/internal/store"
)

// stage fakes

type fakeExtractor struct {
	sheet *model.FactSheet
	err   error
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, projectID string, chunks []model.Chunk) (*model.FactSheet, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.sheet, nil
}

type fakeVerifier struct {
	verdict func(c model.Claim) model.Verdict
	calls   int
}

func (f *fakeVerifier) VerifyAll(ctx context.Context, projectID string, claims []model.Claim, pass string) ([]model.VerificationResult, error) {
	f.calls++
	results := make([]model.VerificationResult, len(claims))
	for i, c := range claims {
		verdict := model.VerdictSupported
		if f.verdict != nil {
			verdict = f.verdict(c)
		}
		results[i] = model.VerificationResult{
			ClaimID: c.ID, ClaimText: c.Text, Pass: pass, Verdict: verdict,
		}
	}
	return results, nil
}

type fakeGenerator struct {
	bundle      *generate.ContentBundle
	err         error
	calls       int
	assumptions []string
}

func (f *fakeGenerator) Audit(ctx context.Context, projectID string, sheet *model.FactSheet) (*generate.AuditReport, error) {
	return generate.Audit(sheet), nil
}

func (f *fakeGenerator) Generate(ctx context.Context, projectID string, sheet *model.FactSheet, types []schema.ContentType, params generate.Params, assumptions []string) (*generate.ContentBundle, error) {
	f.calls++
	f.assumptions = assumptions
	if f.err != nil {
		return nil, f.err
	}
	return f.bundle, nil
}

// fixtures

func completeSheet(projectID string) *model.FactSheet {
	fields := make(map[string]model.FactField)
	for _, name := range schema.FactFieldNames {
		fields[name] = model.FactField{Value: "present", Provenance: []string{"pdf-1-000"}}
	}
	return &model.FactSheet{
		ProjectID: projectID,
		Fields:    fields,
		KeySpecs: []model.KeySpec{
			{Name: "max flow", Value: "300", Unit: "l/min", Provenance: []string{"pdf-1-000"}},
		},
	}
}

func testBundle() *generate.ContentBundle {
	return &generate.ContentBundle{Drafts: []generate.Draft{{
		Type: schema.ContentFAQ, Title: "FAQ", Body: "body",
		Claims: []model.Claim{
			{ID: "faq-001", Text: "Max flow is 300 l/min", CitedChunkIDs: []string{"pdf-1-000"}, IsFactual: true},
			{ID: "faq-002", Text: "Get in touch for a quote", IsFactual: false},
		},
	}}}
}

type fixture struct {
	store     *store.Store
	extractor *fakeExtractor
	verifier  *fakeVerifier
	generator *fakeGenerator
	runner    *Runner
	job       *model.PipelineJob
}

// newFixture builds a store with an already-ingested project and a
// queued job, so runs start at the factsheet stage.
func newFixture(t *testing.T, params model.JobParams) *fixture {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	const projectID = "p1"
	if err := st.CreateProject(projectID, projectID); err != nil {
		t.Fatal(err)
	}
	if err := st.InsertChunks(projectID, []model.Chunk{
		{ID: "pdf-1-000", DocID: "d", Seq: 0, Text: "max flow 300 l/min"},
	}); err != nil {
		t.Fatal(err)
	}

	job := &model.PipelineJob{
		JobID: "job-1", ProjectID: projectID,
		Status: model.StatusQueued, Stage: model.StageQueued,
		Params: params,
	}
	if err := st.CreateJob(job); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveStageOutput(job.JobID, model.StageIngest, IngestOutput{ChunkCount: 1}); err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		store:     st,
		extractor: &fakeExtractor{sheet: completeSheet(projectID)},
		verifier:  &fakeVerifier{},
		generator: &fakeGenerator{bundle: testBundle()},
		job:       job,
	}
	f.runner = NewRunner(st, nil, nil, f.extractor, f.verifier, f.generator, nil)
	return f
}

func (f *fixture) reload(t *testing.T) *model.PipelineJob {
	t.Helper()
	job, err := f.store.GetJob(f.job.JobID)
	if err != nil {
		t.Fatal(err)
	}
	return job
}

// tests

func TestRun_HappyPath(t *testing.T) {
	f := newFixture(t, model.JobParams{})

	if err := f.runner.Run(context.Background(), f.job.JobID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job := f.reload(t)
	if job.Status != model.StatusSucceeded || job.Stage != model.StageDone {
		t.Errorf("expected succeeded/done, got %s/%s", job.Status, job.Stage)
	}
	if job.Progress != 100 {
		t.Errorf("expected progress 100, got %d", job.Progress)
	}
	if !job.HasFactsheet || !job.HasAudit || !job.HasContent {
		t.Errorf("expected all artifacts, got %+v", job)
	}

	var output ContentOutput
	ok, err := f.store.GetStageOutput(job.JobID, model.StageContent, &output)
	if err != nil || !ok {
		t.Fatalf("content output missing: %v", err)
	}
	if output.Unsafe {
		t.Error("verified content must not be marked unsafe")
	}

	results, err := f.store.ListVerifications(job.JobID, "content")
	if err != nil || len(results) == 0 {
		t.Errorf("content verification results should be persisted: %v", err)
	}
}

func TestRun_PreflightBlocksAndResumesIdempotently(t *testing.T) {
	f := newFixture(t, model.JobParams{})
	sheet := completeSheet("p1")
	delete(sheet.Fields, "product_category") // critical for generation
	f.extractor.sheet = sheet

	if err := f.runner.Run(context.Background(), f.job.JobID); err != nil {
		t.Fatalf("a preflight pause is not an error: %v", err)
	}

	job := f.reload(t)
	if job.Status != model.StatusPreflightBlocked {
		t.Fatalf("expected preflight_blocked, got %s", job.Status)
	}
	if job.Progress != progressFactsheet {
		t.Errorf("the gate sits on the factsheet/audit transition, got progress %d", job.Progress)
	}
	if f.generator.calls != 0 {
		t.Error("generation must not run while blocked")
	}
	if f.verifier.calls != 0 {
		t.Error("no verification pass may run while blocked")
	}
	var audit generate.AuditReport
	if ok, _ := f.store.GetStageOutput(job.JobID, model.StageAudit, &audit); ok {
		t.Error("the audit must not run before the preflight gate")
	}
	var report model.PreflightReport
	ok, err := f.store.GetStageOutput(job.JobID, stagePreflight, &report)
	if err != nil || !ok {
		t.Fatalf("preflight report should be persisted: %v", err)
	}
	if report.CanGenerate {
		t.Error("persisted report must reflect the block")
	}

	// Override and requeue, the way Resume does.
	job.Params.ProceedWithAssumptions = true
	job.Status = model.StatusQueued
	if err := f.store.UpdateJob(job); err != nil {
		t.Fatal(err)
	}
	if err := f.runner.Run(context.Background(), f.job.JobID); err != nil {
		t.Fatalf("resumed run failed: %v", err)
	}

	job = f.reload(t)
	if job.Status != model.StatusSucceeded {
		t.Fatalf("expected succeeded after override, got %s", job.Status)
	}
	if f.extractor.calls != 1 {
		t.Errorf("completed stages must not re-run on resume, extractor ran %d times", f.extractor.calls)
	}
	if len(f.generator.assumptions) == 0 {
		t.Error("generator must receive the assumption list for the missing fields")
	}

	// The assumptions are stamped by the runner; the fake generator does
	// not echo them, so their presence here is structural.
	var output ContentOutput
	if ok, err := f.store.GetStageOutput(job.JobID, model.StageContent, &output); err != nil || !ok {
		t.Fatalf("content output missing: %v", err)
	}
	if len(output.Assumptions) == 0 {
		t.Error("a run that proceeded with assumptions must record them in the content output")
	}
}

func TestRun_UnverifiedClaimsFailJob(t *testing.T) {
	f := newFixture(t, model.JobParams{})
	f.verifier.verdict = func(c model.Claim) model.Verdict {
		if c.ID == "faq-001" {
			return model.VerdictUnsupported
		}
		return model.VerdictSupported
	}

	err := f.runner.Run(context.Background(), f.job.JobID)
	var uerr *model.UnverifiedClaimsError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UnverifiedClaimsError, got %v", err)
	}

	job := f.reload(t)
	if job.Status != model.StatusFailed {
		t.Errorf("expected failed, got %s", job.Status)
	}
	if job.ErrorMessage == "" {
		t.Error("the failure message must name the offending claims")
	}
}

func TestRun_AllowUnsafeReleasesFlagged(t *testing.T) {
	f := newFixture(t, model.JobParams{AllowUnsafe: true})
	f.verifier.verdict = func(c model.Claim) model.Verdict {
		if c.IsFactual {
			return model.VerdictAmbiguous
		}
		return model.VerdictSupported
	}

	if err := f.runner.Run(context.Background(), f.job.JobID); err != nil {
		t.Fatalf("allow_unsafe run failed: %v", err)
	}

	job := f.reload(t)
	if job.Status != model.StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", job.Status)
	}
	var output ContentOutput
	if ok, err := f.store.GetStageOutput(job.JobID, model.StageContent, &output); err != nil || !ok {
		t.Fatalf("content output missing: %v", err)
	}
	if !output.Unsafe {
		t.Error("content released past verification must be marked unsafe")
	}
}

func TestRun_ExtractionErrorFailsJob(t *testing.T) {
	f := newFixture(t, model.JobParams{})
	f.extractor.err = &model.ExtractionError{Reason: "field cites fabricated chunk id"}

	if err := f.runner.Run(context.Background(), f.job.JobID); err == nil {
		t.Fatal("expected error")
	}

	job := f.reload(t)
	if job.Status != model.StatusFailed || job.Stage != model.StageFactsheet {
		t.Errorf("expected failed at factsheet, got %s/%s", job.Status, job.Stage)
	}
}

func TestRun_RetryableErrorLeavesJobResumable(t *testing.T) {
	f := newFixture(t, model.JobParams{})
	f.extractor.err = &model.TransportError{Op: "invoke", Err: errors.New("connection reset")}

	if err := f.runner.Run(context.Background(), f.job.JobID); err == nil {
		t.Fatal("expected error")
	}
	job := f.reload(t)
	if job.Status != model.StatusQueued {
		t.Fatalf("retryable failures must leave the job requeued, got %s", job.Status)
	}
	if job.ErrorMessage == "" {
		t.Error("the last error must be recorded on the job")
	}

	// A task retry resumes the stage instead of replaying a terminal no-op.
	f.extractor.err = nil
	if err := f.runner.Run(context.Background(), f.job.JobID); err != nil {
		t.Fatalf("retried run failed: %v", err)
	}
	if got := f.reload(t).Status; got != model.StatusSucceeded {
		t.Errorf("expected succeeded after retry, got %s", got)
	}
}

type fakeScraper struct{ text string }

func (f *fakeScraper) Scrape(ctx context.Context, rawURL string) (string, error) {
	return f.text, nil
}

func TestRun_ChangedDocumentReplacesChunks(t *testing.T) {
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	const projectID = "p1"
	if err := st.CreateProject(projectID, projectID); err != nil {
		t.Fatal(err)
	}
	// Chunks from an earlier job over an older document revision.
	if err := st.InsertChunks(projectID, []model.Chunk{
		{ID: "url-000", DocID: projectID + "-url", Seq: 0, Text: "old revision: max flow 250 l/min"},
	}); err != nil {
		t.Fatal(err)
	}

	job := &model.PipelineJob{
		JobID: "job-2", ProjectID: projectID,
		Status: model.StatusQueued, Stage: model.StageQueued,
		Params: model.JobParams{URL: "https://acme.example/fm200"},
	}
	if err := st.CreateJob(job); err != nil {
		t.Fatal(err)
	}

	runner := NewRunner(st,
		&fakeScraper{text: "new revision: max flow 300 l/min"},
		ingest.NewChunker(1200, 150),
		&fakeExtractor{sheet: completeSheet(projectID)},
		&fakeVerifier{},
		&fakeGenerator{bundle: testBundle()},
		nil)
	if err := runner.Run(context.Background(), job.JobID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks, err := st.ListChunks(projectID)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range chunks {
		if strings.Contains(c.Text, "old revision") {
			t.Errorf("stale chunks must be replaced by the new document's: %q", c.Text)
		}
	}
	if len(chunks) == 0 || !strings.Contains(chunks[0].Text, "300 l/min") {
		t.Errorf("new document's chunks must be stored, got %+v", chunks)
	}
}

func TestRun_TerminalJobUntouched(t *testing.T) {
	f := newFixture(t, model.JobParams{})
	if err := f.runner.Run(context.Background(), f.job.JobID); err != nil {
		t.Fatal(err)
	}
	before := f.reload(t)

	// Re-delivery of the same task must be a no-op.
	if err := f.runner.Run(context.Background(), f.job.JobID); err != nil {
		t.Fatalf("re-run of terminal job must not error: %v", err)
	}
	after := f.reload(t)
	if after.UpdatedAt != before.UpdatedAt {
		t.Error("terminal job must not be modified")
	}
	if f.extractor.calls != 1 {
		t.Errorf("stages must not re-run, extractor ran %d times", f.extractor.calls)
	}
}
