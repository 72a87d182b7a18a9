package generate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/veridica/internal/llm"
	"github.com/ppiankov/veridica/internal/model"
	"github.com/ppiankov/veridica/internal/schema"
)

// Generator drafts the marketing artifacts. Each draft is one reasoning
// call over the fact sheet plus a retrieval context; the model must emit
// its factual statements as claims with chunk citations alongside the
// prose, so verification never has to re-parse the body.
type Generator struct {
	provider    llm.Provider
	retriever   Retriever
	maxAttempts int
}

// NewGenerator creates a content generator.
func NewGenerator(provider llm.Provider, retriever Retriever, maxAttempts int) *Generator {
	return &Generator{provider: provider, retriever: retriever, maxAttempts: maxAttempts}
}

type draftWire struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Claims []struct {
		Text          string   `json:"text"`
		CitedChunkIDs []string `json:"cited_chunk_ids"`
		IsFactual     bool     `json:"is_factual"`
	} `json:"claims"`
	Assumptions []string `json:"assumptions,omitempty"`
}

const draftSchema = `{
  "title": "...",
  "body": "markdown",
  "claims": [{"text": "one factual statement from the body", "cited_chunk_ids": ["chunk-id"], "is_factual": true}],
  "assumptions": ["stated only when generation proceeded despite missing facts"]
}`

const draftSystem = `You write product marketing content grounded strictly in the provided fact sheet and source excerpts.
Rules:
- Every factual statement in the body must also appear in "claims" with the [chunk-id] values that support it.
- Never state a spec, capability, certification, or compatibility that the sources do not establish.
- Opinions, calls to action, and framing go in "claims" with "is_factual": false.
- If you must assume something the sources do not state, say so in "assumptions" and keep it out of factual claims.`

// typeInstructions is the per-artifact brief appended to the prompt.
var typeInstructions = map[schema.ContentType]string{
	schema.ContentFAQ:        "Write 6-10 frequently asked questions with answers. Cover specs, use cases, maintenance, and compatibility. Format as '### Q' headings with answer paragraphs.",
	schema.ContentLanding:    "Write landing page copy: a headline, a one-paragraph hero section, 3-5 benefit blocks with headings, and a closing call to action.",
	schema.ContentUseCase:    "Write 2-4 use case narratives: the buyer's situation, how the product is applied, and the outcome. Ground outcomes in specs, not invented results.",
	schema.ContentComparison: "Write a comparison guide: what to evaluate in this product category and how this product measures on each criterion. Never invent competitor facts; describe criteria generically.",
}

// Generate drafts every requested content type in order. A failed draft
// fails the stage; partial bundles are never returned.
func (g *Generator) Generate(ctx context.Context, projectID string, sheet *model.FactSheet, types []schema.ContentType, params Params, assumptions []string) (*ContentBundle, error) {
	if len(types) == 0 {
		types = schema.AllContentTypes
	}
	bundle := &ContentBundle{}
	for _, ct := range types {
		draft, err := g.draft(ctx, projectID, sheet, ct, params, assumptions)
		if err != nil {
			return nil, fmt.Errorf("drafting %s: %w", ct, err)
		}
		bundle.Drafts = append(bundle.Drafts, *draft)
	}
	return bundle, nil
}

func (g *Generator) draft(ctx context.Context, projectID string, sheet *model.FactSheet, ct schema.ContentType, params Params, assumptions []string) (*Draft, error) {
	_, excerpts, err := buildContext(g.retriever, projectID, sheet, ct)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Artifact: %s\nTone: %s\nAudience: %s\n\n", ct, toneOrDefault(params.Tone), audienceOrDefault(params.Audience))
	b.WriteString("Fact sheet:\n")
	b.WriteString(factSheetSummary(sheet))
	b.WriteString("\nSource excerpts:\n")
	b.WriteString(excerpts)
	if len(assumptions) > 0 {
		b.WriteString("\nApproved assumptions (you may rely on these, list them in \"assumptions\"):\n")
		for _, a := range assumptions {
			b.WriteString("- " + a + "\n")
		}
	}
	b.WriteString("\n" + typeInstructions[ct])

	spec := llm.PromptSpec{
		System: draftSystem,
		Prompt: b.String(),
		Schema: draftSchema,
	}

	var wire draftWire
	if _, err := llm.InvokeJSON(ctx, g.provider, spec, &wire, g.maxAttempts); err != nil {
		return nil, err
	}
	if strings.TrimSpace(wire.Body) == "" {
		return nil, &model.MalformedResponseError{Op: "draft " + string(ct), Err: fmt.Errorf("draft body is empty")}
	}

	draft := &Draft{
		Type:        ct,
		Title:       strings.TrimSpace(wire.Title),
		Body:        strings.TrimSpace(wire.Body),
		Assumptions: wire.Assumptions,
	}
	for i, c := range wire.Claims {
		text := strings.TrimSpace(inlineCiteRe.ReplaceAllString(c.Text, ""))
		if text == "" {
			continue
		}
		draft.Claims = append(draft.Claims, model.Claim{
			ID:            fmt.Sprintf("%s-%03d", ct, i+1),
			Section:       string(ct),
			Text:          text,
			CitedChunkIDs: c.CitedChunkIDs,
			IsFactual:     c.IsFactual,
		})
	}
	draft.Body, draft.Claims = mergeInlineCitations(draft.Body, draft.Claims)
	return draft, nil
}

var inlineCiteRe = regexp.MustCompile(`\s*\[((?:pdf|url)-[0-9]+(?:-[0-9]+)?)\]`)

// mergeInlineCitations adopts [chunk-id] markers the model left in the
// body into claims that arrived without citations, then strips the
// markers from the prose. Models sometimes cite inline despite the
// schema; the citation still counts.
func mergeInlineCitations(body string, claims []model.Claim) (string, []model.Claim) {
	for i := range claims {
		c := &claims[i]
		if !c.IsFactual || len(c.CitedChunkIDs) > 0 {
			continue
		}
		probe := c.Text
		if len(probe) > 40 {
			probe = probe[:40]
		}
		idx := strings.Index(body, strings.TrimSpace(probe))
		if idx < 0 {
			continue
		}
		window := body[idx:]
		if limit := len(c.Text) + 160; len(window) > limit {
			window = window[:limit]
		}
		for _, m := range inlineCiteRe.FindAllStringSubmatch(window, -1) {
			c.CitedChunkIDs = append(c.CitedChunkIDs, m[1])
		}
	}
	return strings.TrimSpace(inlineCiteRe.ReplaceAllString(body, "")), claims
}

func toneOrDefault(t model.Tone) model.Tone {
	if t == "" {
		return model.ToneProfessional
	}
	return t
}

func audienceOrDefault(a model.Audience) model.Audience {
	if a == "" {
		return model.AudienceEngineer
	}
	return a
}
