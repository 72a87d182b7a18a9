package generate

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ppiankov/veridica/internal/model"
	"github.com/ppiankov/veridica/internal/schema"
)

// fakeRetriever serves chunks from a map and returns every chunk for any
// query.
type fakeRetriever struct {
	chunks map[string]model.Chunk
}

func (f *fakeRetriever) SearchChunks(projectID, query string, limit int) ([]model.Chunk, error) {
	var out []model.Chunk
	for _, c := range f.chunks {
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRetriever) GetChunk(projectID, chunkID string) (model.Chunk, error) {
	c, ok := f.chunks[chunkID]
	if !ok {
		return model.Chunk{}, fmt.Errorf("chunk %s: %w", chunkID, model.ErrChunkNotFound)
	}
	return c, nil
}

func TestBuildContext_ProvenanceFirstAndDeduplicated(t *testing.T) {
	r := &fakeRetriever{chunks: map[string]model.Chunk{
		"pdf-1-000": {ID: "pdf-1-000", Text: "provenance chunk"},
		"pdf-2-000": {ID: "pdf-2-000", Text: "search hit"},
	}}
	sheet := &model.FactSheet{
		Fields: map[string]model.FactField{
			"product_name": {Value: "FM-200", Provenance: []string{"pdf-1-000"}},
		},
	}

	chunks, excerpts, err := buildContext(r, "p1", sheet, schema.ContentFAQ)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks[0].ID != "pdf-1-000" {
		t.Errorf("provenance chunks come first, got %s", chunks[0].ID)
	}
	if strings.Count(excerpts, "[pdf-1-000]") != 1 {
		t.Errorf("each chunk appears exactly once:\n%s", excerpts)
	}
}

func TestBuildContext_StaleProvenanceDoesNotFail(t *testing.T) {
	r := &fakeRetriever{chunks: map[string]model.Chunk{
		"pdf-1-000": {ID: "pdf-1-000", Text: "still here"},
	}}
	sheet := &model.FactSheet{
		Fields: map[string]model.FactField{
			"product_name": {Value: "FM-200", Provenance: []string{"pdf-gone-000"}},
		},
	}

	chunks, _, err := buildContext(r, "p1", sheet, schema.ContentLanding)
	if err != nil {
		t.Fatalf("stale provenance must degrade, not fail: %v", err)
	}
	for _, c := range chunks {
		if c.ID == "pdf-gone-000" {
			t.Error("missing chunk must not appear in context")
		}
	}
}

func TestBuildContext_RespectsBudget(t *testing.T) {
	chunks := make(map[string]model.Chunk)
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("pdf-1-%03d", i)
		chunks[id] = model.Chunk{ID: id, Text: strings.Repeat("z", snippetChars)}
	}
	r := &fakeRetriever{chunks: chunks}

	_, excerpts, err := buildContext(r, "p1", nil, schema.ContentFAQ)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(excerpts) > contextBudgetChars {
		t.Errorf("excerpt block exceeds budget: %d > %d", len(excerpts), contextBudgetChars)
	}
}

func TestFactSheetSummary_CarriesProvenance(t *testing.T) {
	sheet := &model.FactSheet{
		Fields: map[string]model.FactField{
			"product_name": {Value: "FM-200", Provenance: []string{"pdf-1-000"}},
		},
		KeySpecs: []model.KeySpec{
			{Name: "max flow", Value: "300", Unit: "l/min", Provenance: []string{"pdf-2-000"}},
		},
	}

	out := factSheetSummary(sheet)
	if !strings.Contains(out, "pdf-1-000") || !strings.Contains(out, "pdf-2-000") {
		t.Errorf("summary must carry source ids for citation:\n%s", out)
	}
	if !strings.Contains(out, "300 l/min") {
		t.Errorf("key specs keep units with values:\n%s", out)
	}
}
