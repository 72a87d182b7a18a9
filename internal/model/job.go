package model

import "time"

// Stage is one step of the pipeline state machine.
type Stage string

const (
	StageQueued    Stage = "queued"
	StageIngest    Stage = "ingest"
	StageFactsheet Stage = "factsheet"
	StageAudit     Stage = "audit"
	StageContent   Stage = "content"
	StageDone      Stage = "done"
)

// StageOrder lists the forward path of the state machine. "failed" is an
// absorbing status reachable from any stage, not a stage itself.
var StageOrder = []Stage{StageIngest, StageFactsheet, StageAudit, StageContent}

// JobStatus is the caller-visible job status. PreflightBlocked is a
// first-class pause, not a failure: the job waits for new input or an
// explicit override before continuing.
type JobStatus string

const (
	StatusQueued           JobStatus = "queued"
	StatusRunning          JobStatus = "running"
	StatusPreflightBlocked JobStatus = "preflight_blocked"
	StatusSucceeded        JobStatus = "succeeded"
	StatusFailed           JobStatus = "failed"
)

// Terminal reports whether the status is immutable.
func (s JobStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Tone and Audience are the enumerated generation parameters.
type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneFriendly     Tone = "friendly"
	ToneTechnical    Tone = "technical"
)

type Audience string

const (
	AudienceEngineer    Audience = "engineer"
	AudienceProcurement Audience = "procurement"
	AudienceExecutive   Audience = "executive"
)

// JobParams are the caller-supplied knobs for one pipeline run.
// The override flags are accepted at job start or while the job sits in
// preflight_blocked; they are the only mutable part of a job's input.
type JobParams struct {
	URL                    string   `json:"url,omitempty"` // optional web page to ingest alongside the PDF
	Tone                   Tone     `json:"tone,omitempty"`
	Audience               Audience `json:"audience,omitempty"`
	Provider               string   `json:"provider,omitempty"`
	Model                  string   `json:"model,omitempty"`
	ProceedWithAssumptions bool     `json:"proceed_with_assumptions,omitempty"`
	AllowUnsafe            bool     `json:"allow_unsafe,omitempty"`
}

// PipelineJob is the persisted state of one multi-stage run. It is the
// only entity with a true state machine; each stage's output is written
// before the stage transition is recorded, so a restart resumes at the
// last completed stage.
type PipelineJob struct {
	JobID          string    `json:"job_id"`
	ProjectID      string    `json:"project_id"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	Status         JobStatus `json:"status"`
	Stage          Stage     `json:"stage"`
	Progress       int       `json:"progress"` // 0-100, non-decreasing while running
	StageDetail    string    `json:"stage_detail,omitempty"`
	HasFactsheet   bool      `json:"has_factsheet"`
	HasAudit       bool      `json:"has_audit"`
	HasContent     bool      `json:"has_content"`
	Params         JobParams `json:"params"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
