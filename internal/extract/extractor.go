// Package extract builds a source-grounded fact sheet from a project's
// chunks. Every populated field must carry provenance ids drawn only
// from the input chunks; a field with no supporting evidence stays null.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/veridica/internal/llm"
	"github.com/ppiankov/veridica/internal/model"
	"github.com/ppiankov/veridica/internal/schema"
)

const maxPromptChars = 18_000

// Extractor is a thin prompt/parse wrapper around the reasoning call.
type Extractor struct {
	provider    llm.Provider
	maxAttempts int
}

// New creates an extractor.
func New(provider llm.Provider, maxAttempts int) *Extractor {
	return &Extractor{provider: provider, maxAttempts: maxAttempts}
}

// factSheetWire is the JSON structure the model is asked to produce.
type factSheetWire struct {
	Fields map[string]struct {
		Value      string   `json:"value,omitempty"`
		Values     []string `json:"values,omitempty"`
		Provenance []string `json:"provenance"`
		Confidence string   `json:"confidence,omitempty"`
	} `json:"fields"`
	KeySpecs []struct {
		Name       string   `json:"name"`
		Value      string   `json:"value"`
		Unit       string   `json:"unit,omitempty"`
		Conditions string   `json:"conditions,omitempty"`
		Provenance []string `json:"provenance"`
	} `json:"key_specs"`
}

const extractSchema = `{
  "fields": {"<field_name>": {"value": "string or omit", "values": ["list fields"], "provenance": ["chunk-id"], "confidence": "high|medium|low"}},
  "key_specs": [{"name": "...", "value": "...", "unit": "...", "conditions": "...", "provenance": ["chunk-id"]}]
}`

const extractSystem = `You extract a structured product fact sheet from document excerpts.
Rules:
- Use ONLY the excerpts below. Every field you fill MUST list the [chunk-id] values it was read from in "provenance".
- If the excerpts do not state a fact, omit the field entirely. Never guess, never invent a chunk id.
- Keep values verbatim where possible; keep units with their numbers in key_specs.`

// Extract runs the reasoning call over the chunk sequence and returns a
// validated fact sheet. All-or-nothing: any parse failure or fabricated
// provenance id fails the whole extraction and nothing is written.
func (e *Extractor) Extract(ctx context.Context, projectID string, chunks []model.Chunk) (*model.FactSheet, error) {
	if len(chunks) == 0 {
		return nil, &model.ExtractionError{Reason: "no chunks to extract from"}
	}

	known := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		known[c.ID] = true
	}

	spec := llm.PromptSpec{
		System: extractSystem,
		Prompt: buildPrompt(chunks),
		Schema: extractSchema,
	}

	var wire factSheetWire
	res, err := llm.InvokeJSON(ctx, e.provider, spec, &wire, e.maxAttempts)
	if err != nil {
		if model.Retryable(err) {
			return nil, err // infrastructure problem, orchestrator may retry the stage
		}
		return nil, &model.ExtractionError{Reason: "reasoning call did not return a parsable fact sheet", Err: err}
	}

	sheet := &model.FactSheet{
		ProjectID:   projectID,
		Fields:      make(map[string]model.FactField),
		Provider:    e.provider.Name(),
		Model:       res.Model,
		ExtractedAt: time.Now().UTC(),
	}

	allowed := make(map[string]bool, len(schema.FactFieldNames))
	for _, name := range schema.FactFieldNames {
		allowed[name] = true
	}

	for name, f := range wire.Fields {
		if !allowed[name] {
			continue // unknown field names are dropped, not errors
		}
		field := model.FactField{
			Value:      strings.TrimSpace(f.Value),
			Values:     trimAll(f.Values),
			Provenance: trimAll(f.Provenance),
			Confidence: model.Confidence(f.Confidence),
		}
		if field.Empty() {
			continue
		}
		if len(field.Provenance) == 0 {
			return nil, &model.ExtractionError{
				Reason: fmt.Sprintf("field %q has a value but no provenance", name)}
		}
		for _, id := range field.Provenance {
			if !known[id] {
				return nil, &model.ExtractionError{
					Reason: fmt.Sprintf("field %q cites fabricated chunk id %q", name, id)}
			}
		}
		sheet.Fields[name] = field
	}

	for _, ks := range wire.KeySpecs {
		spec := model.KeySpec{
			Name:       strings.TrimSpace(ks.Name),
			Value:      strings.TrimSpace(ks.Value),
			Unit:       strings.TrimSpace(ks.Unit),
			Conditions: strings.TrimSpace(ks.Conditions),
			Provenance: trimAll(ks.Provenance),
		}
		if spec.Name == "" || spec.Value == "" {
			continue
		}
		if len(spec.Provenance) == 0 {
			return nil, &model.ExtractionError{
				Reason: fmt.Sprintf("key spec %q has no provenance", spec.Name)}
		}
		for _, id := range spec.Provenance {
			if !known[id] {
				return nil, &model.ExtractionError{
					Reason: fmt.Sprintf("key spec %q cites fabricated chunk id %q", spec.Name, id)}
			}
		}
		sheet.KeySpecs = append(sheet.KeySpecs, spec)
	}

	return sheet, nil
}

func buildPrompt(chunks []model.Chunk) string {
	var b strings.Builder
	b.WriteString("Document excerpts:\n\n")
	for _, c := range chunks {
		snippet := c.Text
		if len(snippet) > 1500 {
			snippet = snippet[:1500]
		}
		entry := fmt.Sprintf("[%s] %s\n\n", c.ID, snippet)
		if b.Len()+len(entry) > maxPromptChars {
			break
		}
		b.WriteString(entry)
	}
	b.WriteString("Extract the fact sheet now.")
	return b.String()
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
