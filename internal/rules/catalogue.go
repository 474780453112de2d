package rules

import "github.com/opensource-finance/kestrel/internal/domain"

// DefaultCatalogue returns the fixed set of fraud rules seeded at startup.
// Expressions are CEL predicates over the evidence features published by
// FeaturesFromEvidence; each evaluates to a match count (flat rules use a
// conditional that yields 0 or 1). The registry inserts these by unique
// name and never overwrites an existing row, so admin edits persist.
func DefaultCatalogue() []*domain.FraudRule {
	return []*domain.FraudRule{
		{
			Name:        "odd-hour-transactions",
			Description: "Transactions between 23:00 and 05:00",
			Expression:  "odd_hour_count",
			ScoreImpact: 15,
			Status:      domain.RuleActive,
		},
		{
			Name:        "aadhaar-reuse",
			Description: "Same Aadhaar used across multiple transactions",
			// Reserved: predicate not yet defined, contributes nothing.
			Expression:  "0",
			ScoreImpact: 25,
			Status:      domain.RuleActive,
		},
		{
			Name:        "multiple-devices",
			Description: "More than 2 distinct device identifiers seen",
			Expression:  "distinct_devices > 2 ? 1 : 0",
			ScoreImpact: 10,
			Status:      domain.RuleActive,
		},
		{
			Name:        "multiple-ips",
			Description: "More than 2 distinct IP addresses seen",
			Expression:  "distinct_ips > 2 ? 1 : 0",
			ScoreImpact: 10,
			Status:      domain.RuleActive,
		},
		{
			Name:        "selfie-mismatch",
			Description: "Check-in verification failed",
			Expression:  "failed_checkins",
			ScoreImpact: 20,
			Status:      domain.RuleActive,
		},
		{
			Name:        "missing-geolocation",
			Description: "Transaction lacks latitude/longitude",
			Expression:  "missing_geo_count",
			ScoreImpact: 15,
			Status:      domain.RuleActive,
		},
		{
			Name:        "failed-biometrics",
			Description: "Failed biometric authentication",
			// Reserved: predicate not yet defined, contributes nothing.
			Expression:  "0",
			ScoreImpact: 30,
			Status:      domain.RuleActive,
		},
	}
}
