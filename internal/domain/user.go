package domain

import (
	"time"
)

// Role is the portal role attached to an authenticated identity.
// Authentication itself happens upstream; the gateway forwards the
// resolved identity and role on every request.
type Role string

const (
	RoleAgent       Role = "agent"
	RoleAdmin       Role = "admin"
	RoleAuditor     Role = "auditor"
	RoleBankOfficer Role = "bank-officer"
)

// User represents an authenticated portal identity.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// RiskLevel is the three-tier classification derived from the fraud score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// AgentProfile is the per-agent record the scoring pipeline writes to.
// FraudScore and RiskLevel are derived values: every recomputation fully
// replaces them, so they can go down as well as up. RiskLevel is never set
// directly by a human.
type AgentProfile struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	CSPID  string `json:"cspId"`

	// Identity documents, optional until verified.
	AadhaarNumber *string `json:"aadhaarNumber,omitempty"`
	PANNumber     *string `json:"panNumber,omitempty"`

	FraudScore int       `json:"fraudScore"`
	RiskLevel  RiskLevel `json:"riskLevel"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
