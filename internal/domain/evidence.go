package domain

import (
	"time"
)

// Transaction is a customer transaction performed by an agent.
// Immutable once created except for status.
type Transaction struct {
	ID          string `json:"id"`
	AgentUserID string `json:"agentUserId"`

	Type            string  `json:"transactionType"`
	Amount          float64 `json:"amount"`
	CustomerName    string  `json:"customerName"`
	CustomerAadhaar string  `json:"customerAadhaar"`
	AccountNumber   string  `json:"accountNumber,omitempty"`

	// Device and network fingerprint, optional.
	DeviceID  string `json:"deviceId,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`

	// Geolocation, nullable. A transaction without coordinates is itself
	// a scoring signal (missing-geolocation).
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	Status          string    `json:"status"`
	TransactionDate time.Time `json:"transactionDate"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Check-in verification outcomes.
const (
	CheckInVerified = "verified"
	CheckInFailed   = "failed"
	CheckInPending  = "pending"
)

// CheckIn is a periodic presence verification recorded by a user.
// Immutable once created.
type CheckIn struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`

	Status    string `json:"status"`
	SelfieURL string `json:"selfieUrl,omitempty"`
	VideoURL  string `json:"videoUrl,omitempty"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
	DeviceID  string  `json:"deviceId"`

	CheckInDate time.Time `json:"checkInDate"`
}

// LocationLog is an append-only location audit trail entry.
type LocationLog struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	LoggedAt time.Time `json:"loggedAt"`
}

// Evidence is the full input to one scoring run: everything attributable to
// an agent, each list ordered newest-first. Empty lists are valid and score
// to zero.
type Evidence struct {
	Transactions []*Transaction `json:"transactions"`
	CheckIns     []*CheckIn     `json:"checkIns"`
	LocationLogs []*LocationLog `json:"locationLogs"`
}
