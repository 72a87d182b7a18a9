package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ppiankov/veridica/internal/model"
)

// SaveFactSheet writes the sheet as a single JSON payload. One row per
// project; a re-run replaces the sheet atomically (all-or-nothing per
// field-set, per the extractor contract).
func (s *Store) SaveFactSheet(sheet *model.FactSheet) error {
	payload, err := json.Marshal(sheet)
	if err != nil {
		return fmt.Errorf("marshaling fact sheet: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO factsheets (project_id, payload, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			payload = excluded.payload,
			provider = excluded.provider,
			model = excluded.model,
			created_at = excluded.created_at`,
		sheet.ProjectID, string(payload), sheet.Provider, sheet.Model,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving fact sheet: %w", err)
	}
	return nil
}

// GetFactSheet loads a project's sheet, or (nil, nil) when none exists.
func (s *Store) GetFactSheet(projectID string) (*model.FactSheet, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM factsheets WHERE project_id = ?`, projectID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying fact sheet: %w", err)
	}
	var sheet model.FactSheet
	if err := json.Unmarshal([]byte(payload), &sheet); err != nil {
		return nil, fmt.Errorf("unmarshaling fact sheet: %w", err)
	}
	return &sheet, nil
}
