package generate

import (
	"strings"
	"testing"

	"github.com/ppiankov/veridica/internal/model"
	"github.com/ppiankov/veridica/internal/schema"
)

func auditSheet() *model.FactSheet {
	fields := make(map[string]model.FactField)
	for _, name := range schema.FactFieldNames {
		fields[name] = model.FactField{Value: "present", Provenance: []string{"pdf-1-000"}}
	}
	return &model.FactSheet{
		ProjectID: "p1",
		Fields:    fields,
		KeySpecs: []model.KeySpec{
			{Name: "flow rate", Value: "300", Unit: "l/min", Provenance: []string{"pdf-1-000"}},
		},
	}
}

func findingsFor(report *AuditReport, field string) []Finding {
	var out []Finding
	for _, f := range report.Findings {
		if f.Field == field {
			out = append(out, f)
		}
	}
	return out
}

func TestAudit_CleanSheetNoFindings(t *testing.T) {
	report := Audit(auditSheet())
	if len(report.Findings) != 0 {
		t.Errorf("complete consistent sheet should audit clean, got %+v", report.Findings)
	}
	if report.HasCritical() {
		t.Error("no critical findings expected")
	}
}

func TestAudit_ContradictorySpecsCritical(t *testing.T) {
	sheet := auditSheet()
	sheet.KeySpecs = append(sheet.KeySpecs,
		model.KeySpec{Name: "Flow Rate", Value: "250", Unit: "l/min", Provenance: []string{"url-003"}})

	report := Audit(sheet)
	if !report.HasCritical() {
		t.Fatal("disagreeing sources on the same spec must be critical")
	}
	specs := findingsFor(report, "key_specs")
	if len(specs) != 1 {
		t.Fatalf("expected 1 contradiction finding, got %d", len(specs))
	}
	ids := strings.Join(specs[0].ChunkIDs, ",")
	if !strings.Contains(ids, "pdf-1-000") || !strings.Contains(ids, "url-003") {
		t.Errorf("finding must cite both sources, got %v", specs[0].ChunkIDs)
	}
}

func TestAudit_DifferingConditionsNotContradictory(t *testing.T) {
	sheet := auditSheet()
	sheet.KeySpecs = []model.KeySpec{
		{Name: "accuracy", Value: "0.5", Unit: "%", Conditions: "at 20 C", Provenance: []string{"pdf-1-000"}},
		{Name: "accuracy", Value: "1.0", Unit: "%", Conditions: "at 60 C", Provenance: []string{"pdf-2-000"}},
	}

	report := Audit(sheet)
	if report.HasCritical() {
		t.Error("values under different stated conditions are not contradictions")
	}
}

func TestAudit_MissingUnitsImportant(t *testing.T) {
	sheet := auditSheet()
	sheet.KeySpecs = []model.KeySpec{
		{Name: "accuracy", Value: "2", Provenance: []string{"pdf-1-000"}},
	}

	report := Audit(sheet)
	specs := findingsFor(report, "key_specs")
	if len(specs) != 1 || specs[0].Severity != SeverityImportant {
		t.Fatalf("bare numeric spec must be flagged important, got %+v", specs)
	}
}

func TestAudit_TextValueNeedsNoUnit(t *testing.T) {
	sheet := auditSheet()
	sheet.KeySpecs = []model.KeySpec{
		{Name: "housing", Value: "stainless steel", Provenance: []string{"pdf-1-000"}},
	}

	report := Audit(sheet)
	if len(findingsFor(report, "key_specs")) != 0 {
		t.Error("non-numeric values do not need units")
	}
}

func TestAudit_GapFindingsAndRecommendations(t *testing.T) {
	sheet := auditSheet()
	delete(sheet.Fields, "product_category")
	delete(sheet.Fields, "maintenance_calibration")

	report := Audit(sheet)
	gaps := findingsFor(report, "product_category")
	if len(gaps) != 1 || gaps[0].Severity != SeverityImportant {
		t.Errorf("gap on a generation-critical field should be important, got %+v", gaps)
	}
	minor := findingsFor(report, "maintenance_calibration")
	if len(minor) != 1 || minor[0].Severity != SeverityMinor {
		t.Errorf("gap on a non-critical field should be minor, got %+v", minor)
	}
	if len(report.Recommendations) < 2 {
		t.Errorf("each gap should produce a recommendation, got %v", report.Recommendations)
	}
}

func TestAudit_ClaimsFactualOnlyWithCitations(t *testing.T) {
	sheet := auditSheet()
	delete(sheet.Fields, "constraints")
	sheet.KeySpecs = append(sheet.KeySpecs,
		model.KeySpec{Name: "flow rate", Value: "250", Unit: "l/min", Provenance: []string{"url-003"}})

	report := Audit(sheet)
	if len(report.Claims) == 0 {
		t.Fatal("findings and recommendations must surface as claims")
	}
	for _, c := range report.Claims {
		if c.IsFactual && len(c.CitedChunkIDs) == 0 {
			t.Errorf("factual audit claim %s has no citations", c.ID)
		}
		if !strings.HasPrefix(c.ID, "audit-") {
			t.Errorf("unexpected claim id %s", c.ID)
		}
	}
}

func TestAudit_LowConfidenceFlagged(t *testing.T) {
	sheet := auditSheet()
	sheet.Fields["manufacturer"] = model.FactField{
		Value: "Acme", Provenance: []string{"url-001"}, Confidence: model.ConfidenceLow}

	report := Audit(sheet)
	if len(findingsFor(report, "manufacturer")) != 1 {
		t.Error("low-confidence fields deserve a minor finding")
	}
}

func TestAudit_NilSheetCritical(t *testing.T) {
	report := Audit(nil)
	if !report.HasCritical() {
		t.Error("no sheet at all is the worst possible audit result")
	}
}
