package model

import "time"

// Claim is a single generated statement plus its supporting citations.
// Factual claims must cite at least one chunk; non-factual claims
// (opinions, CTAs, recommendations) are exempt from grounding.
type Claim struct {
	ID            string   `json:"id"`                 // e.g. "faq-003"
	Section       string   `json:"section,omitempty"`  // which draft the claim belongs to
	Text          string   `json:"text"`
	CitedChunkIDs []string `json:"cited_chunk_ids"`
	IsFactual     bool     `json:"is_factual"`
}

// Verdict is the three-way outcome of checking one claim.
type Verdict string

const (
	VerdictSupported   Verdict = "SUPPORTED"
	VerdictUnsupported Verdict = "UNSUPPORTED"
	VerdictAmbiguous   Verdict = "AMBIGUOUS"
)

// VerificationResult records one verification pass over one claim.
// Results are append-only; a rejected claim is regenerated or dropped
// upstream, never edited in place.
type VerificationResult struct {
	ClaimID         string    `json:"claim_id"`
	ClaimText       string    `json:"claim_text"`
	Pass            string    `json:"pass"` // "audit" or "content"
	Verdict         Verdict   `json:"verdict"`
	MatchedChunkIDs []string  `json:"matched_chunk_ids,omitempty"`
	Rationale       string    `json:"rationale,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// PreflightQuestion asks the caller for one missing fact.
type PreflightQuestion struct {
	Field     string `json:"field"`
	Question  string `json:"question"`
	WhyNeeded string `json:"why_needed"`
}

// PreflightReport is the pre-generation completeness check. CanGenerate
// is false only when a critical field is missing; non-critical gaps
// degrade confidence without blocking.
type PreflightReport struct {
	MissingFields []string            `json:"missing_fields"`
	Questions     []PreflightQuestion `json:"questions"`
	CanGenerate   bool                `json:"can_generate"`
}
