package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/ppiankov/veridica/internal/model"
	"github.com/ppiankov/veridica/internal/store"
)

// recordingEnqueuer collects job ids instead of executing them.
type recordingEnqueuer struct {
	jobIDs []string
}

func (r *recordingEnqueuer) Enqueue(ctx context.Context, jobID string) error {
	r.jobIDs = append(r.jobIDs, jobID)
	return nil
}

func newTestManager(t *testing.T) (*Manager, *store.Store, *recordingEnqueuer) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	enq := &recordingEnqueuer{}
	return NewManager(st, enq, nil), st, enq
}

var pdfBytes = []byte("%PDF-1.4 test")

func TestStartJob_CreatesAndEnqueues(t *testing.T) {
	m, st, enq := newTestManager(t)

	job, err := m.StartJob(context.Background(), "p1", "spec.pdf", pdfBytes, model.JobParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != model.StatusQueued || job.Stage != model.StageQueued {
		t.Errorf("new job should be queued, got %s/%s", job.Status, job.Stage)
	}
	if len(enq.jobIDs) != 1 || enq.jobIDs[0] != job.JobID {
		t.Errorf("job should be enqueued once, got %v", enq.jobIDs)
	}
	if ok, _ := st.ProjectExists("p1"); !ok {
		t.Error("project should be registered")
	}
}

func TestStartJob_IdempotentReplay(t *testing.T) {
	m, _, enq := newTestManager(t)
	params := model.JobParams{Tone: model.ToneTechnical}

	first, err := m.StartJob(context.Background(), "p1", "spec.pdf", pdfBytes, params)
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.StartJob(context.Background(), "p1", "spec.pdf", pdfBytes, params)
	if err != nil {
		t.Fatalf("replay must not error: %v", err)
	}
	if second.JobID != first.JobID {
		t.Errorf("same document and params must map to the same job: %s vs %s", first.JobID, second.JobID)
	}
	if len(enq.jobIDs) != 1 {
		t.Errorf("replay must not enqueue a duplicate, got %v", enq.jobIDs)
	}
}

func TestStartJob_ProjectSingleFlight(t *testing.T) {
	m, _, _ := newTestManager(t)

	if _, err := m.StartJob(context.Background(), "p1", "spec.pdf", pdfBytes, model.JobParams{}); err != nil {
		t.Fatal(err)
	}
	// Different params, so a different idempotency key, but the project
	// already has an active job.
	_, err := m.StartJob(context.Background(), "p1", "spec.pdf", pdfBytes, model.JobParams{Tone: model.ToneFriendly})
	if !errors.Is(err, model.ErrProjectBusy) {
		t.Fatalf("expected ErrProjectBusy, got %v", err)
	}
}

func TestStartJob_RequiresInput(t *testing.T) {
	m, _, _ := newTestManager(t)

	if _, err := m.StartJob(context.Background(), "p1", "", nil, model.JobParams{}); err == nil {
		t.Error("a run with neither document nor url must be rejected")
	}
	if _, err := m.StartJob(context.Background(), "", "spec.pdf", pdfBytes, model.JobParams{}); err == nil {
		t.Error("a run without a project id must be rejected")
	}
}

func TestResume_OnlyFromPreflightBlocked(t *testing.T) {
	m, st, enq := newTestManager(t)

	job, err := m.StartJob(context.Background(), "p1", "spec.pdf", pdfBytes, model.JobParams{})
	if err != nil {
		t.Fatal(err)
	}

	// Queued jobs are not resumable.
	if _, err := m.Resume(context.Background(), job.JobID, ResumeOverrides{}); err == nil {
		t.Error("resume of a queued job must be rejected")
	}

	job.Status = model.StatusPreflightBlocked
	job.Stage = model.StageContent
	if err := st.UpdateJob(job); err != nil {
		t.Fatal(err)
	}

	resumed, err := m.Resume(context.Background(), job.JobID, ResumeOverrides{ProceedWithAssumptions: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resumed.Status != model.StatusQueued {
		t.Errorf("resumed job should be requeued, got %s", resumed.Status)
	}
	if !resumed.Params.ProceedWithAssumptions {
		t.Error("override must be recorded on the job")
	}
	if len(enq.jobIDs) != 2 {
		t.Errorf("resume must enqueue, got %v", enq.jobIDs)
	}
}

func TestResume_TerminalRejected(t *testing.T) {
	m, st, _ := newTestManager(t)

	job, err := m.StartJob(context.Background(), "p1", "spec.pdf", pdfBytes, model.JobParams{})
	if err != nil {
		t.Fatal(err)
	}
	job.Status = model.StatusFailed
	if err := st.UpdateJob(job); err != nil {
		t.Fatal(err)
	}

	_, err = m.Resume(context.Background(), job.JobID, ResumeOverrides{AllowUnsafe: true})
	if !errors.Is(err, model.ErrJobTerminal) {
		t.Fatalf("expected ErrJobTerminal, got %v", err)
	}
}
