package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ppiankov/veridica/internal/model"
	"github.com/ppiankov/veridica/internal/pipeline"
	"github.com/ppiankov/veridica/internal/store"
)

type noopEnqueuer struct{}

func (noopEnqueuer) Enqueue(ctx context.Context, jobID string) error { return nil }

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	manager := pipeline.NewManager(st, noopEnqueuer{}, nil)
	cfg := model.ServerConfig{Addr: ":0", AllowOrigins: []string{"*"}}
	return NewServer(cfg, manager, st, nil, nil), st
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func multipartBody(t *testing.T, fields map[string]string, fileField, filename string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(file)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestStartPipeline_AcceptsUpload(t *testing.T) {
	server, _ := newTestServer(t)

	body, contentType := multipartBody(t,
		map[string]string{"project_id": "p1", "tone": "technical"},
		"file", "spec.pdf", []byte("%PDF-1.4 test"))
	req := httptest.NewRequest(http.MethodPost, "/api/pipeline", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var job model.PipelineJob
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatalf("unmarshaling response: %v", err)
	}
	if job.JobID == "" || job.Status != model.StatusQueued {
		t.Errorf("unexpected job: %+v", job)
	}
	if job.Params.Tone != model.ToneTechnical {
		t.Errorf("params must round-trip, got %+v", job.Params)
	}
}

func TestStartPipeline_RejectsEmptyRequest(t *testing.T) {
	server, _ := newTestServer(t)

	body, contentType := multipartBody(t, map[string]string{"project_id": "p1"}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/pipeline", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without document or url, got %d", w.Code)
	}
}

func TestStartPipeline_BusyProjectConflicts(t *testing.T) {
	server, _ := newTestServer(t)

	start := func(tone string) *httptest.ResponseRecorder {
		body, contentType := multipartBody(t,
			map[string]string{"project_id": "p1", "tone": tone},
			"file", "spec.pdf", []byte("%PDF-1.4 test"))
		req := httptest.NewRequest(http.MethodPost, "/api/pipeline", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, req)
		return w
	}

	if w := start("technical"); w.Code != http.StatusAccepted {
		t.Fatalf("first start: %d", w.Code)
	}
	if w := start("friendly"); w.Code != http.StatusConflict {
		t.Errorf("expected 409 for busy project, got %d", w.Code)
	}
}

func TestJobStatus_NotFound(t *testing.T) {
	server, _ := newTestServer(t)

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/pipeline-jobs/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestJobStatus_IncludesPreflightWhenBlocked(t *testing.T) {
	server, st := newTestServer(t)

	if err := st.CreateProject("p1", "p1"); err != nil {
		t.Fatal(err)
	}
	job := &model.PipelineJob{
		JobID: "j1", ProjectID: "p1",
		Status: model.StatusPreflightBlocked, Stage: model.StageContent,
	}
	if err := st.CreateJob(job); err != nil {
		t.Fatal(err)
	}
	report := model.PreflightReport{
		MissingFields: []string{"product_name"},
		Questions: []model.PreflightQuestion{
			{Field: "product_name", Question: "What is the exact product name?", WhyNeeded: "leads every artifact"},
		},
	}
	if err := st.SaveStageOutput("j1", model.Stage("preflight"), report); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/pipeline-jobs/j1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "product_name") {
		t.Errorf("blocked status must include the preflight questions: %s", w.Body.String())
	}
}

func TestProjectFactsheet(t *testing.T) {
	server, st := newTestServer(t)

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/projects/p1/factsheet", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 before extraction, got %d", w.Code)
	}

	if err := st.CreateProject("p1", "p1"); err != nil {
		t.Fatal(err)
	}
	sheet := &model.FactSheet{
		ProjectID: "p1",
		Fields: map[string]model.FactField{
			"product_name": {Value: "FM-200", Provenance: []string{"pdf-1-000"}},
		},
	}
	if err := st.SaveFactSheet(sheet); err != nil {
		t.Fatal(err)
	}

	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/projects/p1/factsheet", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "FM-200") {
		t.Errorf("factsheet body missing: %s", w.Body.String())
	}
}

func TestResume_InvalidStateRejected(t *testing.T) {
	server, st := newTestServer(t)

	if err := st.CreateProject("p1", "p1"); err != nil {
		t.Fatal(err)
	}
	job := &model.PipelineJob{JobID: "j1", ProjectID: "p1", Status: model.StatusFailed, Stage: model.StageContent}
	if err := st.CreateJob(job); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/pipeline-jobs/j1/resume",
		strings.NewReader(`{"proceed_with_assumptions": true}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 resuming a terminal job, got %d", w.Code)
	}
}
