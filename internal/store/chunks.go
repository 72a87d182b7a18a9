package store

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/veridica/internal/model"
)

// InsertChunks writes a batch of chunks in one transaction. Chunk ids
// are unique per project; a duplicate id aborts the whole batch so a
// partial ingest never leaves ambiguous citations behind.
func (s *Store) InsertChunks(projectID string, chunks []model.Chunk) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO chunks
		(project_id, id, doc_id, seq, text, source_kind, source_file, page, url, section)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		_, err := stmt.Exec(projectID, c.ID, c.DocID, c.Seq, c.Text,
			string(c.Source.Kind), c.Source.File, c.Source.Page, c.Source.URL, c.Source.Section)
		if err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}
	return nil
}

// ReplaceChunks swaps a project's chunk set for a new one in a single
// transaction. Used when a new job brings a changed source document;
// citations into the old set dangle afterwards, which is the correct
// outcome for facts grounded in text that no longer exists.
func (s *Store) ReplaceChunks(projectID string, chunks []model.Chunk) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chunks WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO chunks
		(project_id, id, doc_id, seq, text, source_kind, source_file, page, url, section)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		_, err := stmt.Exec(projectID, c.ID, c.DocID, c.Seq, c.Text,
			string(c.Source.Kind), c.Source.File, c.Source.Page, c.Source.URL, c.Source.Section)
		if err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}
	return nil
}

// GetChunk resolves a chunk id within a project.
func (s *Store) GetChunk(projectID, chunkID string) (model.Chunk, error) {
	var c model.Chunk
	var kind string
	err := s.db.QueryRow(`SELECT id, doc_id, seq, text, source_kind, source_file, page, url, section
		FROM chunks WHERE project_id = ? AND id = ?`, projectID, chunkID).
		Scan(&c.ID, &c.DocID, &c.Seq, &c.Text, &kind,
			&c.Source.File, &c.Source.Page, &c.Source.URL, &c.Source.Section)
	if err == sql.ErrNoRows {
		return model.Chunk{}, fmt.Errorf("chunk %s: %w", chunkID, model.ErrChunkNotFound)
	}
	if err != nil {
		return model.Chunk{}, fmt.Errorf("querying chunk: %w", err)
	}
	c.Source.Kind = model.SourceKind(kind)
	return c, nil
}

// ChunkExists reports whether a chunk id resolves within a project.
func (s *Store) ChunkExists(projectID, chunkID string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM chunks WHERE project_id = ? AND id = ?`,
		projectID, chunkID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying chunk: %w", err)
	}
	return true, nil
}

// ListChunks returns all chunks of a project in document order.
func (s *Store) ListChunks(projectID string) ([]model.Chunk, error) {
	rows, err := s.db.Query(`SELECT id, doc_id, seq, text, source_kind, source_file, page, url, section
		FROM chunks WHERE project_id = ? ORDER BY doc_id, seq`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var out []model.Chunk
	for rows.Next() {
		var c model.Chunk
		var kind string
		if err := rows.Scan(&c.ID, &c.DocID, &c.Seq, &c.Text, &kind,
			&c.Source.File, &c.Source.Page, &c.Source.URL, &c.Source.Section); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Source.Kind = model.SourceKind(kind)
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountChunks returns the number of chunks in a project.
func (s *Store) CountChunks(projectID string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks WHERE project_id = ?`, projectID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// SearchChunks ranks a project's chunks by token overlap with the query
// and returns the top limit. Embeddings and ranking quality are out of
// scope; generators only need a stable, id-preserving retrieval surface.
func (s *Store) SearchChunks(projectID, query string, limit int) ([]model.Chunk, error) {
	chunks, err := s.ListChunks(projectID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		if len(chunks) > limit {
			chunks = chunks[:limit]
		}
		return chunks, nil
	}

	type scored struct {
		chunk model.Chunk
		score int
	}
	var ranked []scored
	for _, c := range chunks {
		text := strings.ToLower(c.Text)
		score := 0
		for term := range terms {
			if strings.Contains(text, term) {
				score++
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{c, score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]model.Chunk, 0, limit)
	for _, r := range ranked {
		out = append(out, r.chunk)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func tokenize(query string) map[string]bool {
	terms := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ".,;:!?()[]\"'")
		if len(w) >= 3 {
			terms[w] = true
		}
	}
	return terms
}
