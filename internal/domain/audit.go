package domain

import (
	"time"
)

// Audit is a field audit of an agent recorded by an auditor. Completing an
// audit is the one trigger where a different actor causes another user's
// score to be recomputed.
type Audit struct {
	ID            string `json:"id"`
	AuditorUserID string `json:"auditorUserId"`
	AgentUserID   string `json:"agentUserId"`

	Status       string   `json:"status"`
	Findings     string   `json:"findings,omitempty"`
	EvidenceURLs []string `json:"evidenceUrls,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Notification is a sink record for user-facing messages. Delivery (push,
// email) happens outside this service.
type Notification struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`

	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	ActionURL string `json:"actionUrl,omitempty"`
	Read      bool   `json:"read"`

	CreatedAt time.Time `json:"createdAt"`
}
