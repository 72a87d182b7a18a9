package schema

import "testing"

func TestCriticalFields(t *testing.T) {
	want := map[string]bool{
		"product_name":      true,
		"product_category":  true,
		"key_specs":         true,
		"primary_use_cases": true,
	}

	for _, ct := range AllContentTypes {
		got := CriticalFields(ct)
		if len(got) != len(want) {
			t.Errorf("%s: expected %d critical fields, got %v", ct, len(want), got)
		}
		for _, f := range got {
			if !want[f] {
				t.Errorf("%s: unexpected critical field %s", ct, f)
			}
		}
	}
}

func TestAuditHasNoCriticalFields(t *testing.T) {
	if got := CriticalFields(ContentAudit); len(got) != 0 {
		t.Errorf("the audit must never block on gaps, got critical fields %v", got)
	}
	if len(Rules(ContentAudit)) == 0 {
		t.Error("the audit still consumes the core fields")
	}
}

func TestLandingExtraRules(t *testing.T) {
	has := func(rules []FieldRule, field string) bool {
		for _, r := range rules {
			if r.Field == field {
				return true
			}
		}
		return false
	}

	if !has(Rules(ContentLanding), "differentiators") {
		t.Error("landing pages consult differentiators")
	}
	if has(Rules(ContentFAQ), "short_description") {
		t.Error("faq does not use the landing-only fields")
	}
}

func TestRulesCarryReasons(t *testing.T) {
	for _, ct := range AllContentTypes {
		for _, r := range Rules(ct) {
			if r.Why == "" {
				t.Errorf("%s/%s: every rule needs a reason for the preflight questions", ct, r.Field)
			}
		}
	}
}
