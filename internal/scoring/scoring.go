// Package scoring implements the fraud scoring pipeline: evidence
// aggregation, weighted rule evaluation, risk classification, and profile
// persistence.
package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/rules"
)

// Trigger names recorded on recompute events.
const (
	TriggerTransaction = "transaction"
	TriggerCheckIn     = "check-in"
	TriggerAudit       = "audit"
)

// Service runs the scoring pipeline. All collaborators are injected; the
// service holds no package-level state.
type Service struct {
	repo     domain.Repository
	registry *rules.Registry
	engine   *rules.Engine
	bus      domain.EventBus

	// lookback bounds the evidence window; zero scans full history.
	lookback time.Duration

	// async routes trigger recomputes through the event bus instead of
	// running them inline.
	async bool
}

// NewService creates a scoring service.
func NewService(repo domain.Repository, registry *rules.Registry, engine *rules.Engine, bus domain.EventBus, cfg domain.ScoringConfig) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
		engine:   engine,
		bus:      bus,
		lookback: time.Duration(cfg.LookbackDays) * 24 * time.Hour,
		async:    cfg.AsyncRecompute,
	}
}

// LoadEvidence aggregates an agent's transactions, check-ins, and location
// logs, each newest-first. Empty histories are valid input; the agent
// identity itself must resolve or the caller gets the repository's
// not-found error.
func (s *Service) LoadEvidence(ctx context.Context, agentUserID string) (*domain.Evidence, error) {
	var since time.Time
	if s.lookback > 0 {
		since = time.Now().UTC().Add(-s.lookback)
	}

	transactions, err := s.repo.ListTransactionsByAgent(ctx, agentUserID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	checkIns, err := s.repo.ListCheckInsByUser(ctx, agentUserID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load check-ins: %w", err)
	}

	locationLogs, err := s.repo.ListLocationLogsByUser(ctx, agentUserID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load location logs: %w", err)
	}

	return &domain.Evidence{
		Transactions: transactions,
		CheckIns:     checkIns,
		LocationLogs: locationLogs,
	}, nil
}

// ComputeScore evaluates each active rule against the evidence and sums
// count_of_matches x scoreImpact. No cap and no normalization; repeated
// violations compound. Pure function of its inputs.
func (s *Service) ComputeScore(evidence *domain.Evidence, activeRules []*domain.FraudRule) (int, error) {
	features := rules.FeaturesFromEvidence(evidence)

	total := 0
	for _, rule := range activeRules {
		if !rule.Active() {
			continue
		}

		matches, err := s.engine.Matches(rule.Expression, features)
		if err != nil {
			return 0, fmt.Errorf("rule %s: %w", rule.Name, err)
		}

		total += matches * rule.ScoreImpact
	}

	return total, nil
}

// ApplyScore persists the computed score and level onto the agent profile,
// stamping updated_at. A missing profile is a caller contract violation
// surfaced as repository.ErrProfileNotFound.
func (s *Service) ApplyScore(ctx context.Context, agentUserID string, score int, level domain.RiskLevel) error {
	return s.repo.UpdateAgentScore(ctx, agentUserID, score, level, time.Now().UTC())
}

// Recompute runs the full pipeline for an agent and returns the persisted
// score and level. Each run is a full replace of the previous score, never
// an accumulation, so the score can decrease as evidence ages out or rules
// are deactivated.
func (s *Service) Recompute(ctx context.Context, agentUserID string) (int, domain.RiskLevel, error) {
	// Profile existence is the pipeline precondition; checking first keeps
	// a non-agent from costing a full evidence scan.
	if _, err := s.repo.GetAgentProfileByUser(ctx, agentUserID); err != nil {
		return 0, "", err
	}

	evidence, err := s.LoadEvidence(ctx, agentUserID)
	if err != nil {
		return 0, "", err
	}

	activeRules, err := s.registry.Active(ctx)
	if err != nil {
		return 0, "", fmt.Errorf("failed to load active rules: %w", err)
	}

	score, err := s.ComputeScore(evidence, activeRules)
	if err != nil {
		return 0, "", err
	}

	level := Classify(score)

	if err := s.ApplyScore(ctx, agentUserID, score, level); err != nil {
		return 0, "", err
	}

	s.publishUpdated(ctx, agentUserID, score, level)

	return score, level, nil
}

// Trigger schedules a recompute after a triggering entity has been
// committed. In async mode it publishes to the bus for the worker; inline
// it runs the pipeline best-effort. Either way the triggering request has
// already succeeded: scoring is a derived cache, and its failures are
// logged, never propagated to the caller.
func (s *Service) Trigger(ctx context.Context, agentUserID, trigger string) {
	if s.async && s.bus != nil {
		payload, _ := json.Marshal(domain.ScoreRecomputeEvent{
			AgentUserID: agentUserID,
			Trigger:     trigger,
		})
		if err := s.bus.Publish(ctx, domain.TopicScoreRecompute, payload); err != nil {
			slog.Error("failed to publish recompute event, running inline",
				"agent_user_id", agentUserID, "trigger", trigger, "error", err)
		} else {
			return
		}
	}

	s.runBestEffort(ctx, agentUserID, trigger)
}

func (s *Service) runBestEffort(ctx context.Context, agentUserID, trigger string) {
	score, level, err := s.Recompute(ctx, agentUserID)
	if err != nil {
		if isProfileNotFound(err) {
			// Recompute was requested for a user without an agent profile.
			// Contract violation by the caller, not a user-visible failure.
			slog.Warn("integrity: recompute for non-agent user",
				"user_id", agentUserID, "trigger", trigger)
			return
		}
		slog.Error("fraud score recompute failed",
			"agent_user_id", agentUserID, "trigger", trigger, "error", err)
		return
	}

	slog.Info("fraud score recomputed",
		"agent_user_id", agentUserID, "trigger", trigger,
		"score", score, "risk_level", level)
}

func (s *Service) publishUpdated(ctx context.Context, agentUserID string, score int, level domain.RiskLevel) {
	if s.bus == nil {
		return
	}

	payload, _ := json.Marshal(domain.ScoreUpdatedEvent{
		AgentUserID: agentUserID,
		FraudScore:  score,
		RiskLevel:   level,
	})
	if err := s.bus.Publish(ctx, domain.TopicScoreUpdated, payload); err != nil {
		slog.Warn("failed to publish score update", "agent_user_id", agentUserID, "error", err)
	}
}

func isProfileNotFound(err error) bool {
	return errors.Is(err, repository.ErrProfileNotFound)
}
