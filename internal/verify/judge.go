package verify

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/veridica/internal/llm"
	"github.com/ppiankov/veridica/internal/model"
)

// Judgment is the three-way outcome of comparing one claim to one chunk.
type Judgment int

const (
	JudgmentNeutral Judgment = iota // chunk neither supports nor contradicts
	JudgmentEntailed
	JudgmentContradicted
)

func (j Judgment) String() string {
	switch j {
	case JudgmentEntailed:
		return "entailed"
	case JudgmentContradicted:
		return "contradicted"
	default:
		return "neutral"
	}
}

// Judge decides whether a chunk entails, contradicts, or is neutral to a
// claim. Judges see exactly one (claim, chunk) pair; aggregation policy
// stays in the Verifier. The algorithm is pluggable: LLM-adjudicated by
// default, lexical for offline runs.
type Judge interface {
	Judge(ctx context.Context, claim string, chunk model.Chunk) (Judgment, string, error)
}

// LLM judge

// LLMJudge delegates the entailment call to a reasoning provider.
type LLMJudge struct {
	provider    llm.Provider
	maxAttempts int
}

// NewLLMJudge creates an LLM-backed judge.
func NewLLMJudge(provider llm.Provider, maxAttempts int) *LLMJudge {
	return &LLMJudge{provider: provider, maxAttempts: maxAttempts}
}

const judgeSchema = `{"verdict": "entailed|contradicted|neutral", "rationale": "one sentence"}`

const judgeSystem = `You judge whether a source passage supports a claim.
- "entailed": the passage states or directly implies the claim.
- "contradicted": the passage states something incompatible with the claim.
- "neutral": the passage is about something else or is insufficient to decide.
Judge strictly from the passage text. Do not use outside knowledge.`

type judgeWire struct {
	Verdict   string `json:"verdict"`
	Rationale string `json:"rationale"`
}

// Judge performs one entailment call.
func (j *LLMJudge) Judge(ctx context.Context, claim string, chunk model.Chunk) (Judgment, string, error) {
	spec := llm.PromptSpec{
		System:    judgeSystem,
		Prompt:    fmt.Sprintf("Claim:\n%s\n\nPassage [%s]:\n%s", claim, chunk.ID, chunk.Text),
		Schema:    judgeSchema,
		MaxTokens: 200,
	}

	var wire judgeWire
	if _, err := llm.InvokeJSON(ctx, j.provider, spec, &wire, j.maxAttempts); err != nil {
		return JudgmentNeutral, "", err
	}

	switch strings.ToLower(strings.TrimSpace(wire.Verdict)) {
	case "entailed", "supported":
		return JudgmentEntailed, wire.Rationale, nil
	case "contradicted", "contradiction":
		return JudgmentContradicted, wire.Rationale, nil
	default:
		return JudgmentNeutral, wire.Rationale, nil
	}
}

// Lexical judge

var numberRe = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)

var negationCues = []string{"not ", "no ", "never ", "cannot ", "excludes ", "without "}

// LexicalJudge is a deterministic fallback: token and number overlap for
// entailment, shared numbers with a negation mismatch for contradiction.
// Coarse on purpose: it exists for offline runs and tests, not quality.
type LexicalJudge struct{}

// NewLexicalJudge creates the deterministic judge.
func NewLexicalJudge() *LexicalJudge { return &LexicalJudge{} }

// Judge compares claim and chunk lexically.
func (j *LexicalJudge) Judge(_ context.Context, claim string, chunk model.Chunk) (Judgment, string, error) {
	claimLower := strings.ToLower(claim)
	chunkLower := strings.ToLower(chunk.Text)

	claimNums := numberRe.FindAllString(claimLower, -1)
	sharedNums := 0
	for _, n := range claimNums {
		if strings.Contains(chunkLower, n) {
			sharedNums++
		}
	}

	overlap := tokenOverlap(claimLower, chunkLower)

	// Same facts, opposite polarity reads as contradiction.
	if overlap >= 0.5 && negated(claimLower) != negated(chunkLower) {
		return JudgmentContradicted, "negation mismatch against overlapping passage", nil
	}
	// A numeric claim whose numbers are absent from an otherwise
	// overlapping passage is suspect.
	if len(claimNums) > 0 && sharedNums == 0 && overlap >= 0.5 {
		return JudgmentContradicted, "claim numbers not present in overlapping passage", nil
	}
	if overlap >= 0.6 && (len(claimNums) == 0 || sharedNums > 0) {
		return JudgmentEntailed, fmt.Sprintf("token overlap %.2f", overlap), nil
	}
	return JudgmentNeutral, fmt.Sprintf("token overlap %.2f", overlap), nil
}

func tokenOverlap(claim, chunk string) float64 {
	words := strings.Fields(claim)
	if len(words) == 0 {
		return 0
	}
	hits := 0
	total := 0
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?()[]\"'")
		if len(w) < 4 {
			continue
		}
		total++
		if strings.Contains(chunk, w) {
			hits++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func negated(s string) bool {
	for _, cue := range negationCues {
		if strings.Contains(s, cue) {
			return true
		}
	}
	return false
}
