package generate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/veridica/internal/model"
	"github.com/ppiankov/veridica/internal/schema"
)

// Audit runs the deterministic source-quality checks over a fact sheet:
// contradictory spec values, numeric specs missing units, and a gap
// analysis against the field requirement table. No reasoning calls; the
// audit must produce the same report for the same sheet every time.
func Audit(sheet *model.FactSheet) *AuditReport {
	report := &AuditReport{
		Findings: []Finding{},
		Claims:   []model.Claim{},
	}
	if sheet == nil {
		report.Findings = append(report.Findings, Finding{
			Severity: SeverityCritical,
			Message:  "no fact sheet extracted",
		})
		return report
	}
	report.ProjectID = sheet.ProjectID

	checkSpecContradictions(sheet, report)
	checkMissingUnits(sheet, report)
	checkGaps(sheet, report)

	claimSeq := 0
	for _, f := range report.Findings {
		claimSeq++
		report.Claims = append(report.Claims, model.Claim{
			ID:            fmt.Sprintf("audit-%03d", claimSeq),
			Section:       "audit",
			Text:          f.Message,
			CitedChunkIDs: f.ChunkIDs,
			// Findings that point at source text are factual and must be
			// grounded in it; gap findings describe absence and cannot be.
			IsFactual: len(f.ChunkIDs) > 0,
		})
	}
	for _, rec := range report.Recommendations {
		claimSeq++
		report.Claims = append(report.Claims, model.Claim{
			ID:        fmt.Sprintf("audit-%03d", claimSeq),
			Section:   "audit",
			Text:      rec,
			IsFactual: false,
		})
	}
	return report
}

// normalizeSpecName folds case and punctuation so "Flow Rate" and
// "flow-rate" collide.
func normalizeSpecName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer("-", " ", "_", " ", "  ", " ").Replace(name)
	return name
}

// checkSpecContradictions flags a spec name that appears with different
// values. Two sources disagreeing on the same number is the most damaging
// defect a fact sheet can carry into generation.
func checkSpecContradictions(sheet *model.FactSheet, report *AuditReport) {
	byName := make(map[string][]model.KeySpec)
	for _, ks := range sheet.KeySpecs {
		key := normalizeSpecName(ks.Name)
		byName[key] = append(byName[key], ks)
	}
	for _, specs := range byName {
		if len(specs) < 2 {
			continue
		}
		first := specs[0]
		for _, other := range specs[1:] {
			if strings.EqualFold(strings.TrimSpace(first.Value), strings.TrimSpace(other.Value)) &&
				strings.EqualFold(strings.TrimSpace(first.Unit), strings.TrimSpace(other.Unit)) {
				continue
			}
			// Differing conditions explain differing values.
			if first.Conditions != other.Conditions && first.Conditions != "" && other.Conditions != "" {
				continue
			}
			ids := append(append([]string{}, first.Provenance...), other.Provenance...)
			report.Findings = append(report.Findings, Finding{
				Severity: SeverityCritical,
				Field:    "key_specs",
				Message: fmt.Sprintf("sources disagree on %q: %s %s vs %s %s",
					first.Name, first.Value, first.Unit, other.Value, other.Unit),
				ChunkIDs: ids,
			})
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("Confirm the correct value of %q with the manufacturer before publishing.", first.Name))
		}
	}
}

var leadingNumberRe = regexp.MustCompile(`^[~≈<>±]?\s*-?\d+(?:[.,]\d+)?(?:\s*[-–to]+\s*-?\d+(?:[.,]\d+)?)?$`)

// checkMissingUnits flags numeric spec values with no unit. "Accuracy: 2"
// is unusable in a draft; "2 %" is a fact.
func checkMissingUnits(sheet *model.FactSheet, report *AuditReport) {
	for _, ks := range sheet.KeySpecs {
		value := strings.TrimSpace(ks.Value)
		if ks.Unit != "" || !leadingNumberRe.MatchString(value) {
			continue
		}
		report.Findings = append(report.Findings, Finding{
			Severity: SeverityImportant,
			Field:    "key_specs",
			Message:  fmt.Sprintf("spec %q has numeric value %q with no unit", ks.Name, value),
			ChunkIDs: ks.Provenance,
		})
	}
}

// checkGaps runs the field table against the sheet. The audit consumes
// every field; severity tracks whether the gap would block generation of
// the stricter content types.
func checkGaps(sheet *model.FactSheet, report *AuditReport) {
	critical := make(map[string]bool)
	for _, f := range schema.CriticalFields(schema.ContentFAQ) {
		critical[f] = true
	}
	for _, rule := range schema.Rules(schema.ContentAudit) {
		if sheet.FieldPresent(rule.Field) {
			continue
		}
		severity := SeverityMinor
		if critical[rule.Field] {
			severity = SeverityImportant
		}
		report.Findings = append(report.Findings, Finding{
			Severity: severity,
			Field:    rule.Field,
			Message:  fmt.Sprintf("source documents do not establish %s", rule.Field),
		})
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("Provide %s: %s.", strings.ReplaceAll(rule.Field, "_", " "), rule.Why))
	}

	// Low-confidence fields are worth a look even when present.
	for name, f := range sheet.Fields {
		if !f.Empty() && f.Confidence == model.ConfidenceLow {
			report.Findings = append(report.Findings, Finding{
				Severity: SeverityMinor,
				Field:    name,
				Message:  fmt.Sprintf("%s was extracted with low confidence", name),
				ChunkIDs: f.Provenance,
			})
		}
	}
}
