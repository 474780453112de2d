// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")

	// ErrProfileNotFound marks a score write for a user without an agent
	// profile. Calling the pipeline for a non-agent is a caller contract
	// violation, not a runtime condition.
	ErrProfileNotFound = errors.New("agent profile not found")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// CreateUser stores a user record.
func (r *SQLRepository) CreateUser(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO users (id, name, email, role, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		u.ID, u.Name, u.Email, string(u.Role), u.CreatedAt,
	)
	return err
}

// GetUser retrieves a user by ID.
func (r *SQLRepository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT id, name, email, role, created_at
		FROM users
		WHERE id = ?
	`

	var u domain.User
	var role string
	err := r.db.QueryRowContext(ctx, r.rebind(query), userID).Scan(
		&u.ID, &u.Name, &u.Email, &role, &u.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	u.Role = domain.Role(role)
	return &u, nil
}

// CreateAgentProfile stores an agent profile.
func (r *SQLRepository) CreateAgentProfile(ctx context.Context, p *domain.AgentProfile) error {
	if p.UserID == "" || p.CSPID == "" {
		return fmt.Errorf("%w: userId and cspId are required", ErrInvalidInput)
	}

	if p.RiskLevel == "" {
		p.RiskLevel = domain.RiskLow
	}

	query := `
		INSERT INTO agent_profiles (
			id, user_id, csp_id, aadhaar_number, pan_number,
			fraud_score, risk_level, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		p.ID, p.UserID, p.CSPID,
		p.AadhaarNumber, p.PANNumber,
		p.FraudScore, string(p.RiskLevel),
		p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// GetAgentProfileByUser retrieves the agent profile for a user.
func (r *SQLRepository) GetAgentProfileByUser(ctx context.Context, userID string) (*domain.AgentProfile, error) {
	query := `
		SELECT id, user_id, csp_id, aadhaar_number, pan_number,
			   fraud_score, risk_level, created_at, updated_at
		FROM agent_profiles
		WHERE user_id = ?
	`

	p, err := r.scanProfile(r.db.QueryRowContext(ctx, r.rebind(query), userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	return p, err
}

// UpdateAgentScore overwrites the derived score fields on a profile.
// Full replace: the previous score is discarded, not accumulated.
func (r *SQLRepository) UpdateAgentScore(ctx context.Context, userID string, score int, level domain.RiskLevel, at time.Time) error {
	if score < 0 {
		return fmt.Errorf("%w: score must be non-negative", ErrInvalidInput)
	}

	query := `
		UPDATE agent_profiles
		SET fraud_score = ?, risk_level = ?, updated_at = ?
		WHERE user_id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), score, string(level), at, userID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrProfileNotFound
	}

	return nil
}

// ListAgentScores retrieves all agent profiles ordered by fraud score descending.
func (r *SQLRepository) ListAgentScores(ctx context.Context) ([]*domain.AgentProfile, error) {
	query := `
		SELECT id, user_id, csp_id, aadhaar_number, pan_number,
			   fraud_score, risk_level, created_at, updated_at
		FROM agent_profiles
		ORDER BY fraud_score DESC, updated_at DESC
	`
	return r.queryProfiles(ctx, query)
}

// TopRiskAgents retrieves the highest-scoring agent profiles.
func (r *SQLRepository) TopRiskAgents(ctx context.Context, limit int) ([]*domain.AgentProfile, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, user_id, csp_id, aadhaar_number, pan_number,
			   fraud_score, risk_level, created_at, updated_at
		FROM agent_profiles
		ORDER BY fraud_score DESC, updated_at DESC
		LIMIT ?
	`
	return r.queryProfiles(ctx, query, limit)
}

func (r *SQLRepository) queryProfiles(ctx context.Context, query string, args ...any) ([]*domain.AgentProfile, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*domain.AgentProfile
	for rows.Next() {
		p, err := r.scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	return profiles, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepository) scanProfile(row rowScanner) (*domain.AgentProfile, error) {
	var p domain.AgentProfile
	var aadhaar, pan sql.NullString
	var level string

	err := row.Scan(
		&p.ID, &p.UserID, &p.CSPID, &aadhaar, &pan,
		&p.FraudScore, &level, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if aadhaar.Valid {
		p.AadhaarNumber = &aadhaar.String
	}
	if pan.Valid {
		p.PANNumber = &pan.String
	}
	p.RiskLevel = domain.RiskLevel(level)

	return &p, nil
}

// SaveTransaction stores a transaction.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.AgentUserID == "" {
		return fmt.Errorf("%w: agentUserId is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO transactions (
			id, agent_user_id, transaction_type, amount,
			customer_name, customer_aadhaar, account_number,
			device_id, ip_address, latitude, longitude,
			status, transaction_date, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tx.AgentUserID, tx.Type, tx.Amount,
		tx.CustomerName, tx.CustomerAadhaar, nullStr(tx.AccountNumber),
		nullStr(tx.DeviceID), nullStr(tx.IPAddress),
		tx.Latitude, tx.Longitude,
		tx.Status, tx.TransactionDate, tx.CreatedAt,
	)
	return err
}

// ListTransactionsByAgent retrieves an agent's transactions newest-first.
// The zero `since` means full history.
func (r *SQLRepository) ListTransactionsByAgent(ctx context.Context, agentUserID string, since time.Time) ([]*domain.Transaction, error) {
	query := `
		SELECT id, agent_user_id, transaction_type, amount,
			   customer_name, customer_aadhaar, account_number,
			   device_id, ip_address, latitude, longitude,
			   status, transaction_date, created_at
		FROM transactions
		WHERE agent_user_id = ?
		  AND transaction_date >= ?
		ORDER BY transaction_date DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), agentUserID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var account, device, ip sql.NullString
		var lat, lng sql.NullFloat64

		if err := rows.Scan(
			&tx.ID, &tx.AgentUserID, &tx.Type, &tx.Amount,
			&tx.CustomerName, &tx.CustomerAadhaar, &account,
			&device, &ip, &lat, &lng,
			&tx.Status, &tx.TransactionDate, &tx.CreatedAt,
		); err != nil {
			return nil, err
		}

		tx.AccountNumber = account.String
		tx.DeviceID = device.String
		tx.IPAddress = ip.String
		if lat.Valid {
			tx.Latitude = &lat.Float64
		}
		if lng.Valid {
			tx.Longitude = &lng.Float64
		}

		transactions = append(transactions, &tx)
	}

	return transactions, rows.Err()
}

// SaveCheckIn stores a check-in.
func (r *SQLRepository) SaveCheckIn(ctx context.Context, c *domain.CheckIn) error {
	if c.UserID == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO check_ins (
			id, user_id, status, selfie_url, video_url,
			latitude, longitude, address, device_id, check_in_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		c.ID, c.UserID, c.Status, nullStr(c.SelfieURL), nullStr(c.VideoURL),
		c.Latitude, c.Longitude, c.Address, c.DeviceID, c.CheckInDate,
	)
	return err
}

// ListCheckInsByUser retrieves a user's check-ins newest-first.
func (r *SQLRepository) ListCheckInsByUser(ctx context.Context, userID string, since time.Time) ([]*domain.CheckIn, error) {
	query := `
		SELECT id, user_id, status, selfie_url, video_url,
			   latitude, longitude, address, device_id, check_in_date
		FROM check_ins
		WHERE user_id = ?
		  AND check_in_date >= ?
		ORDER BY check_in_date DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checkIns []*domain.CheckIn
	for rows.Next() {
		var c domain.CheckIn
		var selfie, video, address, device sql.NullString

		if err := rows.Scan(
			&c.ID, &c.UserID, &c.Status, &selfie, &video,
			&c.Latitude, &c.Longitude, &address, &device, &c.CheckInDate,
		); err != nil {
			return nil, err
		}

		c.SelfieURL = selfie.String
		c.VideoURL = video.String
		c.Address = address.String
		c.DeviceID = device.String

		checkIns = append(checkIns, &c)
	}

	return checkIns, rows.Err()
}

// SaveLocationLog appends a location log entry.
func (r *SQLRepository) SaveLocationLog(ctx context.Context, l *domain.LocationLog) error {
	if l.UserID == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO location_logs (id, user_id, latitude, longitude, logged_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		l.ID, l.UserID, l.Latitude, l.Longitude, l.LoggedAt,
	)
	return err
}

// ListLocationLogsByUser retrieves a user's location logs newest-first.
func (r *SQLRepository) ListLocationLogsByUser(ctx context.Context, userID string, since time.Time) ([]*domain.LocationLog, error) {
	query := `
		SELECT id, user_id, latitude, longitude, logged_at
		FROM location_logs
		WHERE user_id = ?
		  AND logged_at >= ?
		ORDER BY logged_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*domain.LocationLog
	for rows.Next() {
		var l domain.LocationLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Latitude, &l.Longitude, &l.LoggedAt); err != nil {
			return nil, err
		}
		logs = append(logs, &l)
	}

	return logs, rows.Err()
}

// InsertRuleIfAbsent inserts a rule when no row with the same name exists.
// Existing rows are never overwritten, so reseeding is idempotent and admin
// edits survive restarts.
func (r *SQLRepository) InsertRuleIfAbsent(ctx context.Context, rule *domain.FraudRule) (bool, error) {
	if rule.Name == "" {
		return false, fmt.Errorf("%w: rule name is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO fraud_rules (
			id, name, description, expression, score_impact, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Expression,
		rule.ScoreImpact, rule.Status, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ListRules retrieves all rules ordered by name.
func (r *SQLRepository) ListRules(ctx context.Context) ([]*domain.FraudRule, error) {
	query := `
		SELECT id, name, description, expression, score_impact, status, created_at, updated_at
		FROM fraud_rules
		ORDER BY name
	`
	return r.queryRules(ctx, query)
}

// ListActiveRules retrieves rules with status=active ordered by name.
// Inactive rules contribute zero regardless of their stored impact.
func (r *SQLRepository) ListActiveRules(ctx context.Context) ([]*domain.FraudRule, error) {
	query := `
		SELECT id, name, description, expression, score_impact, status, created_at, updated_at
		FROM fraud_rules
		WHERE status = 'active'
		ORDER BY name
	`
	return r.queryRules(ctx, query)
}

func (r *SQLRepository) queryRules(ctx context.Context, query string, args ...any) ([]*domain.FraudRule, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.FraudRule
	for rows.Next() {
		var rule domain.FraudRule
		var desc sql.NullString

		if err := rows.Scan(
			&rule.ID, &rule.Name, &desc, &rule.Expression,
			&rule.ScoreImpact, &rule.Status, &rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, err
		}

		rule.Description = desc.String
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// GetRuleByName retrieves a rule by its unique name.
func (r *SQLRepository) GetRuleByName(ctx context.Context, name string) (*domain.FraudRule, error) {
	query := `
		SELECT id, name, description, expression, score_impact, status, created_at, updated_at
		FROM fraud_rules
		WHERE name = ?
	`

	var rule domain.FraudRule
	var desc sql.NullString

	err := r.db.QueryRowContext(ctx, r.rebind(query), name).Scan(
		&rule.ID, &rule.Name, &desc, &rule.Expression,
		&rule.ScoreImpact, &rule.Status, &rule.CreatedAt, &rule.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Description = desc.String
	return &rule, nil
}

// UpdateRule applies an admin mutation to a rule and returns the updated row.
func (r *SQLRepository) UpdateRule(ctx context.Context, name string, upd domain.RuleUpdate) (*domain.FraudRule, error) {
	rule, err := r.GetRuleByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if upd.ScoreImpact != nil {
		if *upd.ScoreImpact <= 0 {
			return nil, fmt.Errorf("%w: scoreImpact must be positive", ErrInvalidInput)
		}
		rule.ScoreImpact = *upd.ScoreImpact
	}
	if upd.Status != nil {
		if *upd.Status != domain.RuleActive && *upd.Status != domain.RuleInactive {
			return nil, fmt.Errorf("%w: status must be active or inactive", ErrInvalidInput)
		}
		rule.Status = *upd.Status
	}
	if upd.Expression != nil {
		rule.Expression = *upd.Expression
	}
	rule.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE fraud_rules
		SET score_impact = ?, status = ?, expression = ?, updated_at = ?
		WHERE name = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ScoreImpact, rule.Status, rule.Expression, rule.UpdatedAt, name,
	)
	if err != nil {
		return nil, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrNotFound
	}

	return rule, nil
}

// SaveAudit stores an audit record.
func (r *SQLRepository) SaveAudit(ctx context.Context, a *domain.Audit) error {
	if a.AgentUserID == "" || a.AuditorUserID == "" {
		return fmt.Errorf("%w: agentUserId and auditorUserId are required", ErrInvalidInput)
	}

	urls, _ := json.Marshal(a.EvidenceURLs)

	query := `
		INSERT INTO audits (
			id, auditor_user_id, agent_user_id, status, findings, evidence_urls, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		a.ID, a.AuditorUserID, a.AgentUserID, a.Status,
		a.Findings, string(urls), a.CreatedAt,
	)
	return err
}

// SaveNotification stores a notification sink record.
func (r *SQLRepository) SaveNotification(ctx context.Context, n *domain.Notification) error {
	if n.UserID == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}

	read := 0
	if n.Read {
		read = 1
	}

	query := `
		INSERT INTO notifications (
			id, user_id, title, message, type, action_url, read, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		n.ID, n.UserID, n.Title, n.Message, n.Type,
		nullStr(n.ActionURL), read, n.CreatedAt,
	)
	return err
}

// ListNotificationsByUser retrieves a user's notifications newest-first.
func (r *SQLRepository) ListNotificationsByUser(ctx context.Context, userID string) ([]*domain.Notification, error) {
	query := `
		SELECT id, user_id, title, message, type, action_url, read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		var n domain.Notification
		var actionURL sql.NullString
		var read int

		if err := rows.Scan(
			&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type,
			&actionURL, &read, &n.CreatedAt,
		); err != nil {
			return nil, err
		}

		n.ActionURL = actionURL.String
		n.Read = read == 1
		notifications = append(notifications, &n)
	}

	return notifications, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// nullStr maps the empty string to SQL NULL.
func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
