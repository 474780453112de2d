// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// Evidence listings take a `since` cutoff; the zero time means full history.
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, userID string) (*User, error)

	// Agent profile operations
	CreateAgentProfile(ctx context.Context, p *AgentProfile) error
	GetAgentProfileByUser(ctx context.Context, userID string) (*AgentProfile, error)
	// UpdateAgentScore overwrites the derived score fields and stamps
	// updated_at. Returns ErrProfileNotFound if the user has no profile.
	UpdateAgentScore(ctx context.Context, userID string, score int, level RiskLevel, at time.Time) error
	ListAgentScores(ctx context.Context) ([]*AgentProfile, error)
	TopRiskAgents(ctx context.Context, limit int) ([]*AgentProfile, error)

	// Evidence operations (scoring only ever reads these)
	SaveTransaction(ctx context.Context, tx *Transaction) error
	ListTransactionsByAgent(ctx context.Context, agentUserID string, since time.Time) ([]*Transaction, error)
	SaveCheckIn(ctx context.Context, c *CheckIn) error
	ListCheckInsByUser(ctx context.Context, userID string, since time.Time) ([]*CheckIn, error)
	SaveLocationLog(ctx context.Context, l *LocationLog) error
	ListLocationLogsByUser(ctx context.Context, userID string, since time.Time) ([]*LocationLog, error)

	// Fraud rule operations
	// InsertRuleIfAbsent inserts the rule when no row with the same name
	// exists and reports whether an insert happened. Existing rows are
	// never overwritten.
	InsertRuleIfAbsent(ctx context.Context, r *FraudRule) (bool, error)
	ListRules(ctx context.Context) ([]*FraudRule, error)
	ListActiveRules(ctx context.Context) ([]*FraudRule, error)
	GetRuleByName(ctx context.Context, name string) (*FraudRule, error)
	UpdateRule(ctx context.Context, name string, upd RuleUpdate) (*FraudRule, error)

	// Audit operations
	SaveAudit(ctx context.Context, a *Audit) error

	// Notification sink
	SaveNotification(ctx context.Context, n *Notification) error
	ListNotificationsByUser(ctx context.Context, userID string) ([]*Notification, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
