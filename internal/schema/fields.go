// Package schema declares which fact-sheet fields each content type
// requires. Adding an output type means adding table rows, nothing else.
package schema

// ContentType names one generated artifact.
type ContentType string

const (
	ContentAudit      ContentType = "audit"
	ContentFAQ        ContentType = "faq"
	ContentLanding    ContentType = "landing"
	ContentUseCase    ContentType = "usecase"
	ContentComparison ContentType = "comparison"
)

// AllContentTypes in generation order.
var AllContentTypes = []ContentType{ContentFAQ, ContentLanding, ContentUseCase, ContentComparison}

// FieldRule is one row of the requirement table. Critical fields block
// generation when missing; non-critical ones only degrade confidence.
type FieldRule struct {
	Field    string
	Critical bool
	Why      string
}

// Core fields every content type draws on.
var coreRules = []FieldRule{
	{"product_name", true, "every artifact leads with the product's name"},
	{"product_category", true, "positioning and comparisons need to know what kind of product this is"},
	{"key_specs", true, "factual statements about performance are built from the spec table"},
	{"primary_use_cases", true, "drafts are framed around what the product is used for"},
	{"target_buyer_roles", false, "tone and emphasis are tuned to who is reading"},
	{"constraints", false, "honest drafts mention limits and exclusions"},
	{"certifications_standards", false, "compliance questions come up in FAQs and comparisons"},
	{"integrations_interfaces", false, "integration questions come up for technical audiences"},
	{"maintenance_calibration", false, "lifecycle answers need service intervals"},
}

var extraRules = map[ContentType][]FieldRule{
	ContentLanding: {
		{"short_description", false, "the hero section opens with a one-line description"},
		{"differentiators", false, "landing pages lead with what sets the product apart"},
	},
	ContentComparison: {
		{"differentiators", false, "comparison rows highlight what distinguishes the product"},
	},
}

// Rules returns the requirement table for a content type. The audit
// consumes every core field but never blocks, so all its rows are
// non-critical.
func Rules(ct ContentType) []FieldRule {
	rules := make([]FieldRule, 0, len(coreRules)+2)
	if ct == ContentAudit {
		for _, r := range coreRules {
			r.Critical = false
			rules = append(rules, r)
		}
		return rules
	}
	rules = append(rules, coreRules...)
	rules = append(rules, extraRules[ct]...)
	return rules
}

// CriticalFields returns just the blocking field names for a content type.
func CriticalFields(ct ContentType) []string {
	var out []string
	for _, r := range Rules(ct) {
		if r.Critical {
			out = append(out, r.Field)
		}
	}
	return out
}

// FactFieldNames lists every scalar/list field the extractor populates.
// "key_specs" is structured separately on the FactSheet.
var FactFieldNames = []string{
	"product_name",
	"product_category",
	"short_description",
	"manufacturer",
	"model_number",
	"primary_use_cases",
	"target_buyer_roles",
	"constraints",
	"certifications_standards",
	"integrations_interfaces",
	"maintenance_calibration",
	"differentiators",
}
