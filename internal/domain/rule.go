package domain

import (
	"time"
)

// Rule lifecycle states. Inactive rules contribute zero to the score
// regardless of their stored impact.
const (
	RuleActive   = "active"
	RuleInactive = "inactive"
)

// FraudRule is a named, weighted predicate over an agent's evidence.
// The predicate is a CEL expression evaluated against derived evidence
// features (see rules.Engine); its integer result is the match count, and
// the rule contributes matches × ScoreImpact to the total.
type FraudRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// Expression is the CEL predicate. "0" marks a catalogue entry that is
	// reserved but not yet evaluated.
	Expression string `json:"expression"`

	ScoreImpact int    `json:"scoreImpact"`
	Status      string `json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Active reports whether the rule participates in scoring.
func (r *FraudRule) Active() bool {
	return r.Status == RuleActive
}

// RuleUpdate is an admin mutation of a rule. Nil fields are left unchanged.
// Updates take effect on the next scoring run; there is no retroactive
// recompute.
type RuleUpdate struct {
	ScoreImpact *int    `json:"scoreImpact,omitempty"`
	Status      *string `json:"status,omitempty"`
	Expression  *string `json:"expression,omitempty"`
}
