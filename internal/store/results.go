package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/veridica/internal/model"
)

// AppendVerification records one verification result. The table is an
// append-only audit trail; results are never updated or deleted.
func (s *Store) AppendVerification(jobID string, r model.VerificationResult) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO verification_results
		(job_id, claim_id, claim_text, pass, verdict, matched_chunk_ids, rationale, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		jobID, r.ClaimID, r.ClaimText, r.Pass, string(r.Verdict),
		strings.Join(r.MatchedChunkIDs, ","), r.Rationale,
		r.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("appending verification result: %w", err)
	}
	return nil
}

// AppendVerifications records a batch of results in one transaction.
func (s *Store) AppendVerifications(jobID string, results []model.VerificationResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO verification_results
		(job_id, claim_id, claim_text, pass, verdict, matched_chunk_ids, rationale, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().UTC()
		}
		_, err := stmt.Exec(jobID, r.ClaimID, r.ClaimText, r.Pass, string(r.Verdict),
			strings.Join(r.MatchedChunkIDs, ","), r.Rationale,
			r.CreatedAt.Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("appending verification result %s: %w", r.ClaimID, err)
		}
	}
	return tx.Commit()
}

// ListVerifications returns a job's results for one pass in insertion
// order, or all passes when pass is empty.
func (s *Store) ListVerifications(jobID, pass string) ([]model.VerificationResult, error) {
	query := `SELECT claim_id, claim_text, pass, verdict, matched_chunk_ids, rationale, created_at
		FROM verification_results WHERE job_id = ?`
	args := []any{jobID}
	if pass != "" {
		query += ` AND pass = ?`
		args = append(args, pass)
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing verification results: %w", err)
	}
	defer rows.Close()

	var out []model.VerificationResult
	for rows.Next() {
		var r model.VerificationResult
		var verdict, matched, createdAt string
		if err := rows.Scan(&r.ClaimID, &r.ClaimText, &r.Pass, &verdict, &matched, &r.Rationale, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning verification result: %w", err)
		}
		r.Verdict = model.Verdict(verdict)
		if matched != "" {
			r.MatchedChunkIDs = strings.Split(matched, ",")
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}
