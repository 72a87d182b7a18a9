package verify

import (
	"fmt"
	"strings"

	"github.com/ppiankov/veridica/internal/model"
	"github.com/ppiankov/veridica/internal/schema"
)

// Preflight checks fact-sheet completeness against the requirement table
// for one content type. It is pure table lookup, no reasoning calls:
// CanGenerate is false exactly when a critical field is missing, and
// every missing field (critical or not) yields a question the caller can
// forward to a human.
func Preflight(sheet *model.FactSheet, ct schema.ContentType) model.PreflightReport {
	report := model.PreflightReport{
		MissingFields: []string{},
		Questions:     []model.PreflightQuestion{},
		CanGenerate:   true,
	}

	for _, rule := range schema.Rules(ct) {
		if sheet != nil && sheet.FieldPresent(rule.Field) {
			continue
		}
		report.MissingFields = append(report.MissingFields, rule.Field)
		report.Questions = append(report.Questions, model.PreflightQuestion{
			Field:     rule.Field,
			Question:  questionFor(rule.Field),
			WhyNeeded: rule.Why,
		})
		if rule.Critical {
			report.CanGenerate = false
		}
	}
	return report
}

// questionFor turns a field name into a question a product owner can
// answer without seeing the pipeline.
func questionFor(field string) string {
	switch field {
	case "product_name":
		return "What is the exact product name?"
	case "product_category":
		return "What category of product is this (e.g. flow meter, CNC lathe, dental scanner)?"
	case "key_specs":
		return "What are the key technical specifications, with units?"
	case "primary_use_cases":
		return "What are the primary use cases this product is bought for?"
	case "target_buyer_roles":
		return "Who typically evaluates and buys this product (roles, not names)?"
	case "constraints":
		return "What are the known constraints, limits, or exclusions?"
	case "certifications_standards":
		return "Which certifications or standards does the product meet?"
	case "integrations_interfaces":
		return "What systems or interfaces does the product integrate with?"
	case "maintenance_calibration":
		return "What are the maintenance or calibration requirements?"
	case "short_description":
		return "How would you describe the product in one sentence?"
	case "differentiators":
		return "What sets this product apart from alternatives?"
	default:
		return fmt.Sprintf("What is the value of %q?", strings.ReplaceAll(field, "_", " "))
	}
}
