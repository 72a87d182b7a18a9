package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ppiankov/veridica/internal/model"
)

// CreateJob persists a new job row.
func (s *Store) CreateJob(job *model.PipelineJob) error {
	params, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("marshaling params: %w", err)
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	_, err = s.db.Exec(`INSERT INTO jobs
		(job_id, project_id, idempotency_key, status, stage, progress, stage_detail,
		 has_factsheet, has_audit, has_content, params, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.JobID, job.ProjectID, job.IdempotencyKey, string(job.Status), string(job.Stage),
		job.Progress, job.StageDetail,
		boolToInt(job.HasFactsheet), boolToInt(job.HasAudit), boolToInt(job.HasContent),
		string(params), job.ErrorMessage,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("creating job: %w", err)
	}
	return nil
}

// GetJob loads a job by id, or (nil, nil) when absent.
func (s *Store) GetJob(jobID string) (*model.PipelineJob, error) {
	row := s.db.QueryRow(`SELECT job_id, project_id, idempotency_key, status, stage, progress,
		stage_detail, has_factsheet, has_audit, has_content, params, error_message,
		created_at, updated_at
		FROM jobs WHERE job_id = ?`, jobID)
	return scanJob(row)
}

// GetJobByIdempotencyKey returns the in-flight job (queued, running or
// preflight_blocked) for the key, if any. Lets a re-POST of the same
// document return the existing job instead of racing a duplicate.
func (s *Store) GetJobByIdempotencyKey(key string) (*model.PipelineJob, error) {
	row := s.db.QueryRow(`SELECT job_id, project_id, idempotency_key, status, stage, progress,
		stage_detail, has_factsheet, has_audit, has_content, params, error_message,
		created_at, updated_at
		FROM jobs
		WHERE idempotency_key = ? AND status IN ('queued', 'running', 'preflight_blocked')
		ORDER BY created_at DESC LIMIT 1`, key)
	return scanJob(row)
}

// ActiveJobForProject returns the project's non-terminal job, if any.
// At most one job per project may be active at a time.
func (s *Store) ActiveJobForProject(projectID string) (*model.PipelineJob, error) {
	row := s.db.QueryRow(`SELECT job_id, project_id, idempotency_key, status, stage, progress,
		stage_detail, has_factsheet, has_audit, has_content, params, error_message,
		created_at, updated_at
		FROM jobs
		WHERE project_id = ? AND status IN ('queued', 'running', 'preflight_blocked')
		ORDER BY created_at DESC LIMIT 1`, projectID)
	return scanJob(row)
}

// UpdateJob writes job state back. Terminal jobs are immutable; progress
// never decreases while a job is running.
func (s *Store) UpdateJob(job *model.PipelineJob) error {
	current, err := s.GetJob(job.JobID)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("job %s not found", job.JobID)
	}
	if current.Status.Terminal() {
		return fmt.Errorf("job %s: %w", job.JobID, model.ErrJobTerminal)
	}
	if job.Progress < current.Progress {
		job.Progress = current.Progress
	}

	params, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("marshaling params: %w", err)
	}
	job.UpdatedAt = time.Now().UTC()
	_, err = s.db.Exec(`UPDATE jobs SET
		status = ?, stage = ?, progress = ?, stage_detail = ?,
		has_factsheet = ?, has_audit = ?, has_content = ?,
		params = ?, error_message = ?, updated_at = ?
		WHERE job_id = ?`,
		string(job.Status), string(job.Stage), job.Progress, job.StageDetail,
		boolToInt(job.HasFactsheet), boolToInt(job.HasAudit), boolToInt(job.HasContent),
		string(params), job.ErrorMessage, job.UpdatedAt.Format(time.RFC3339),
		job.JobID)
	if err != nil {
		return fmt.Errorf("updating job: %w", err)
	}
	return nil
}

// SaveStageOutput persists a stage's output payload. Written before the
// stage transition is recorded so a crash between the two resumes at the
// completed stage.
func (s *Store) SaveStageOutput(jobID string, stage model.Stage, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling stage output: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO stage_outputs (job_id, stage, payload, completed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(job_id, stage) DO UPDATE SET
			payload = excluded.payload, completed_at = excluded.completed_at`,
		jobID, string(stage), string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving stage output: %w", err)
	}
	return nil
}

// GetStageOutput loads a completed stage's output into out. Returns
// false when the stage has not completed.
func (s *Store) GetStageOutput(jobID string, stage model.Stage, out any) (bool, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM stage_outputs WHERE job_id = ? AND stage = ?`,
		jobID, string(stage)).Scan(&payload)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying stage output: %w", err)
	}
	if out != nil {
		if err := json.Unmarshal([]byte(payload), out); err != nil {
			return false, fmt.Errorf("unmarshaling stage output: %w", err)
		}
	}
	return true, nil
}

// CompletedStages returns which stages have persisted output for a job.
func (s *Store) CompletedStages(jobID string) (map[model.Stage]bool, error) {
	rows, err := s.db.Query(`SELECT stage FROM stage_outputs WHERE job_id = ?`, jobID)
	if err != nil {
		return nil, fmt.Errorf("listing stage outputs: %w", err)
	}
	defer rows.Close()

	done := make(map[model.Stage]bool)
	for rows.Next() {
		var stage string
		if err := rows.Scan(&stage); err != nil {
			return nil, fmt.Errorf("scanning stage: %w", err)
		}
		done[model.Stage(stage)] = true
	}
	return done, rows.Err()
}

func scanJob(row *sql.Row) (*model.PipelineJob, error) {
	var job model.PipelineJob
	var status, stage, params, createdAt, updatedAt string
	var hasFactsheet, hasAudit, hasContent int
	var errMsg sql.NullString
	err := row.Scan(&job.JobID, &job.ProjectID, &job.IdempotencyKey, &status, &stage,
		&job.Progress, &job.StageDetail, &hasFactsheet, &hasAudit, &hasContent,
		&params, &errMsg, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning job: %w", err)
	}
	job.Status = model.JobStatus(status)
	job.Stage = model.Stage(stage)
	job.HasFactsheet = hasFactsheet != 0
	job.HasAudit = hasAudit != 0
	job.HasContent = hasContent != 0
	job.ErrorMessage = errMsg.String
	if err := json.Unmarshal([]byte(params), &job.Params); err != nil {
		return nil, fmt.Errorf("unmarshaling params: %w", err)
	}
	job.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	job.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &job, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
