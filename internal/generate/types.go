// Package generate produces the audit report and the marketing drafts
// from a verified fact sheet. Every factual statement a generator emits
// is a Claim carrying chunk citations; the verifier decides downstream
// whether the draft ships.
package generate

import (
	"github.com/ppiankov/veridica/internal/model"
	"github.com/ppiankov/veridica/internal/schema"
)

// Params are the caller-facing generation knobs.
type Params struct {
	Tone     model.Tone
	Audience model.Audience
}

// Draft is one generated artifact plus the claims extracted from it.
type Draft struct {
	Type        schema.ContentType `json:"type"`
	Title       string             `json:"title"`
	Body        string             `json:"body"`
	Assumptions []string           `json:"assumptions,omitempty"`
	Claims      []model.Claim      `json:"claims"`
}

// ContentBundle is the output of the content stage: one draft per
// requested content type, in generation order.
type ContentBundle struct {
	Drafts []Draft `json:"drafts"`
}

// Claims flattens every draft's claims for batch verification.
func (b *ContentBundle) Claims() []model.Claim {
	var out []model.Claim
	for _, d := range b.Drafts {
		out = append(out, d.Claims...)
	}
	return out
}

// Severity ranks audit findings. Critical findings block generation the
// same way missing critical fields do; the rest inform without blocking.
type Severity string

const (
	SeverityCritical  Severity = "critical"
	SeverityImportant Severity = "important"
	SeverityMinor     Severity = "minor"
)

// Finding is one audit observation about the fact sheet or its sources.
type Finding struct {
	Severity Severity `json:"severity"`
	Field    string   `json:"field,omitempty"`
	Message  string   `json:"message"`
	ChunkIDs []string `json:"chunk_ids,omitempty"`
}

// Scorecard is the rubric-scored view of source quality. Dimensions are
// 0-100; the summary is narrative, not a claim.
type Scorecard struct {
	Completeness    int    `json:"completeness"`
	Consistency     int    `json:"consistency"`
	Specificity     int    `json:"specificity"`
	ReadyForContent bool   `json:"ready_for_content"`
	Summary         string `json:"summary"`
}

// AuditReport is the audit stage output: deterministic findings over the
// fact sheet, the rubric scorecard, and the claims those findings assert.
// Recommendations are opinions, so their claims are non-factual and skip
// grounding.
type AuditReport struct {
	ProjectID       string        `json:"project_id"`
	Findings        []Finding     `json:"findings"`
	Scorecard       *Scorecard    `json:"scorecard,omitempty"`
	Recommendations []string      `json:"recommendations,omitempty"`
	Claims          []model.Claim `json:"claims"`
}

// HasCritical reports whether any finding is critical.
func (r *AuditReport) HasCritical() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
