package model

import (
	"strings"
	"time"
)

// NotFound is the sentinel the extractor uses for fields it looked for
// but could not ground in any chunk. Treated the same as absent.
const NotFound = "NOT_FOUND"

// Confidence tags how strongly a fact is supported by its provenance.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// FactField is a single fact-sheet entry: a value (scalar or list) plus
// the chunk ids it was read from. Every non-empty field must carry at
// least one provenance id that resolves in the project's chunk store.
type FactField struct {
	Value      string     `json:"value,omitempty"`
	Values     []string   `json:"values,omitempty"`
	Provenance []string   `json:"provenance"`
	Confidence Confidence `json:"confidence,omitempty"`
}

// Empty reports whether the field carries no usable value.
func (f FactField) Empty() bool {
	if strings.TrimSpace(f.Value) != "" && !strings.EqualFold(strings.TrimSpace(f.Value), NotFound) {
		return false
	}
	for _, v := range f.Values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// KeySpec is one technical specification row.
type KeySpec struct {
	Name       string   `json:"name"`
	Value      string   `json:"value"`
	Unit       string   `json:"unit,omitempty"`
	Conditions string   `json:"conditions,omitempty"`
	Provenance []string `json:"provenance"`
}

// FactSheet is the structured, source-grounded summary of one product
// document. Fields map schema field names (see internal/schema) to values;
// key specs keep their structure for the deterministic audit checks.
type FactSheet struct {
	ProjectID   string               `json:"project_id"`
	Fields      map[string]FactField `json:"fields"`
	KeySpecs    []KeySpec            `json:"key_specs,omitempty"`
	Provider    string               `json:"provider,omitempty"`
	Model       string               `json:"model,omitempty"`
	ExtractedAt time.Time            `json:"extracted_at"`
}

// FieldPresent reports whether a schema field has a usable value.
// "key_specs" is structured and checked separately.
func (s *FactSheet) FieldPresent(name string) bool {
	if name == "key_specs" {
		return len(s.KeySpecs) > 0
	}
	f, ok := s.Fields[name]
	return ok && !f.Empty()
}

// ProvenanceIDs returns every chunk id referenced anywhere in the sheet.
func (s *FactSheet) ProvenanceIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(list []string) {
		for _, id := range list {
			if id != "" && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	for _, f := range s.Fields {
		add(f.Provenance)
	}
	for _, ks := range s.KeySpecs {
		add(ks.Provenance)
	}
	return ids
}
