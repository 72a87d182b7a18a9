package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/veridica/internal/llm"
	"github.com/ppiankov/veridica/internal/model"
)

const rubricSchema = `{
  "completeness": 0-100,
  "consistency": 0-100,
  "specificity": 0-100,
  "ready_for_content": true|false,
  "summary": "two or three sentences on the sheet's fitness for content generation"
}`

const rubricSystem = `You score a product fact sheet for content-generation readiness.
- completeness: how many of the fields a marketing draft needs are filled.
- consistency: whether specs and statements agree with each other.
- specificity: whether values are concrete (numbers with units, named standards) rather than vague.
Score only what the sheet contains. The summary states weaknesses, not praise.`

type rubricWire struct {
	Completeness    int    `json:"completeness"`
	Consistency     int    `json:"consistency"`
	Specificity     int    `json:"specificity"`
	ReadyForContent bool   `json:"ready_for_content"`
	Summary         string `json:"summary"`
}

// Audit combines the deterministic checks with one rubric-scoring call.
// The findings and claims are deterministic so the verifier has stable
// inputs; only the scorecard comes from the model.
func (g *Generator) Audit(ctx context.Context, projectID string, sheet *model.FactSheet) (*AuditReport, error) {
	report := Audit(sheet)

	var b strings.Builder
	b.WriteString("Fact sheet:\n")
	b.WriteString(factSheetSummary(sheet))
	if len(report.Findings) > 0 {
		b.WriteString("\nDeterministic findings already raised:\n")
		for _, f := range report.Findings {
			fmt.Fprintf(&b, "- [%s] %s\n", f.Severity, f.Message)
		}
	}

	spec := llm.PromptSpec{
		System:    rubricSystem,
		Prompt:    b.String(),
		Schema:    rubricSchema,
		MaxTokens: 400,
	}

	var wire rubricWire
	if _, err := llm.InvokeJSON(ctx, g.provider, spec, &wire, g.maxAttempts); err != nil {
		return nil, fmt.Errorf("scoring rubric: %w", err)
	}

	report.Scorecard = &Scorecard{
		Completeness:    clampScore(wire.Completeness),
		Consistency:     clampScore(wire.Consistency),
		Specificity:     clampScore(wire.Specificity),
		ReadyForContent: wire.ReadyForContent && !report.HasCritical(),
		Summary:         strings.TrimSpace(wire.Summary),
	}
	return report, nil
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
