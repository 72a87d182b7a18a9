package generate

import (
	"fmt"
	"strings"

	"github.com/ppiankov/veridica/internal/model"
	"github.com/ppiankov/veridica/internal/schema"
)

// Retriever is the chunk search surface generators draw context from.
type Retriever interface {
	SearchChunks(projectID, query string, limit int) ([]model.Chunk, error)
	GetChunk(projectID, chunkID string) (model.Chunk, error)
}

const (
	contextBudgetChars = 14_000
	perQueryLimit      = 6
	snippetChars       = 1200
)

// sectionQueries maps a content type to the retrieval queries used to
// assemble its context. Queries are phrased from the buyer's side so the
// overlap scoring pulls the answering passages.
func sectionQueries(ct schema.ContentType, sheet *model.FactSheet) []string {
	name := ""
	if sheet != nil {
		if f, ok := sheet.Fields["product_name"]; ok {
			name = f.Value
		}
	}
	base := []string{
		name + " specifications technical data",
		name + " applications use cases",
	}
	switch ct {
	case schema.ContentFAQ:
		return append(base,
			name+" warranty support maintenance",
			name+" installation requirements compatibility")
	case schema.ContentLanding:
		return append(base,
			name+" features benefits advantages",
			name+" overview description")
	case schema.ContentUseCase:
		return append(base,
			name+" industry application example",
			name+" performance conditions operating")
	case schema.ContentComparison:
		return append(base,
			name+" versus alternative difference",
			name+" certifications standards compliance")
	default:
		return base
	}
}

// buildContext assembles the retrieval context for one draft: the fact
// sheet's own provenance chunks first (they ground the known facts),
// then search hits per section query, de-duplicated, under a character
// budget. Returns the chunks and the prompt-ready excerpt block.
func buildContext(r Retriever, projectID string, sheet *model.FactSheet, ct schema.ContentType) ([]model.Chunk, string, error) {
	seen := make(map[string]bool)
	var chunks []model.Chunk

	add := func(c model.Chunk) {
		if c.ID == "" || seen[c.ID] {
			return
		}
		seen[c.ID] = true
		chunks = append(chunks, c)
	}

	if sheet != nil {
		for _, id := range sheet.ProvenanceIDs() {
			c, err := r.GetChunk(projectID, id)
			if err != nil {
				continue // stale provenance degrades context, it does not fail generation
			}
			add(c)
		}
	}

	for _, q := range sectionQueries(ct, sheet) {
		hits, err := r.SearchChunks(projectID, q, perQueryLimit)
		if err != nil {
			return nil, "", fmt.Errorf("searching chunks: %w", err)
		}
		for _, c := range hits {
			add(c)
		}
	}

	var b strings.Builder
	var kept []model.Chunk
	for _, c := range chunks {
		snippet := c.Text
		if len(snippet) > snippetChars {
			snippet = snippet[:snippetChars]
		}
		entry := fmt.Sprintf("[%s] %s\n\n", c.ID, snippet)
		if b.Len()+len(entry) > contextBudgetChars {
			break
		}
		b.WriteString(entry)
		kept = append(kept, c)
	}
	return kept, b.String(), nil
}

// factSheetSummary renders the sheet into the prompt. Provenance ids are
// carried next to each value so the model can cite them.
func factSheetSummary(sheet *model.FactSheet) string {
	if sheet == nil {
		return "(no fact sheet)"
	}
	var b strings.Builder
	for _, name := range schema.FactFieldNames {
		f, ok := sheet.Fields[name]
		if !ok || f.Empty() {
			continue
		}
		value := f.Value
		if value == "" {
			value = strings.Join(f.Values, "; ")
		}
		fmt.Fprintf(&b, "%s: %s  (sources: %s)\n", name, value, strings.Join(f.Provenance, ", "))
	}
	if len(sheet.KeySpecs) > 0 {
		b.WriteString("key_specs:\n")
		for _, ks := range sheet.KeySpecs {
			line := fmt.Sprintf("  - %s: %s", ks.Name, ks.Value)
			if ks.Unit != "" {
				line += " " + ks.Unit
			}
			if ks.Conditions != "" {
				line += " (" + ks.Conditions + ")"
			}
			fmt.Fprintf(&b, "%s  (sources: %s)\n", line, strings.Join(ks.Provenance, ", "))
		}
	}
	return b.String()
}
