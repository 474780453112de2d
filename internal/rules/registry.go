package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
)

const activeRulesKey = "rules:active"

// Registry is the fraud rule catalogue service. It is injected into the
// scoring pipeline rather than reached through package state so the
// pipeline stays testable in isolation.
type Registry struct {
	repo   domain.Repository
	cache  domain.Cache
	engine *Engine

	// cacheTTL bounds cross-process staleness of the active rule set.
	// Local updates invalidate eagerly.
	cacheTTL time.Duration
}

// NewRegistry creates a rule registry. cache may be nil, in which case
// every read goes to the repository.
func NewRegistry(repo domain.Repository, cache domain.Cache, engine *Engine, cacheTTL time.Duration) *Registry {
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Second
	}
	return &Registry{
		repo:     repo,
		cache:    cache,
		engine:   engine,
		cacheTTL: cacheTTL,
	}
}

// EnsureDefaults idempotently seeds the default rule catalogue. Rules are
// matched by unique name; rows already present are left untouched, so a
// second call inserts nothing and overwrites nothing.
func (r *Registry) EnsureDefaults(ctx context.Context) error {
	now := time.Now().UTC()
	seeded := 0

	for _, rule := range DefaultCatalogue() {
		rule.ID = uuid.New().String()
		rule.CreatedAt = now
		rule.UpdatedAt = now

		inserted, err := r.repo.InsertRuleIfAbsent(ctx, rule)
		if err != nil {
			return fmt.Errorf("failed to seed rule %s: %w", rule.Name, err)
		}
		if inserted {
			seeded++
		}
	}

	if seeded > 0 {
		slog.Info("seeded default fraud rules", "count", seeded)
		r.invalidate(ctx)
	}
	return nil
}

// Active returns the rules that participate in scoring. Reads are served
// from cache within cacheTTL; a few seconds of staleness is acceptable and
// Update invalidates eagerly.
func (r *Registry) Active(ctx context.Context) ([]*domain.FraudRule, error) {
	if r.cache != nil {
		if data, err := r.cache.Get(ctx, activeRulesKey); err == nil && data != nil {
			var cached []*domain.FraudRule
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	active, err := r.repo.ListActiveRules(ctx)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if data, err := json.Marshal(active); err == nil {
			if err := r.cache.Set(ctx, activeRulesKey, data, r.cacheTTL); err != nil {
				slog.Warn("failed to cache active rules", "error", err)
			}
		}
	}

	return active, nil
}

// List returns every rule, active or not.
func (r *Registry) List(ctx context.Context) ([]*domain.FraudRule, error) {
	return r.repo.ListRules(ctx)
}

// Get returns a rule by name.
func (r *Registry) Get(ctx context.Context, name string) (*domain.FraudRule, error) {
	return r.repo.GetRuleByName(ctx, name)
}

// Update applies an admin mutation. The change takes effect on the next
// scoring run; no retroactive recompute happens.
func (r *Registry) Update(ctx context.Context, name string, upd domain.RuleUpdate) (*domain.FraudRule, error) {
	if upd.Expression != nil && r.engine != nil {
		if err := r.engine.ValidateExpression(*upd.Expression); err != nil {
			return nil, err
		}
	}

	rule, err := r.repo.UpdateRule(ctx, name, upd)
	if err != nil {
		return nil, err
	}

	r.invalidate(ctx)
	slog.Info("fraud rule updated", "name", name, "impact", rule.ScoreImpact, "status", rule.Status)
	return rule, nil
}

func (r *Registry) invalidate(ctx context.Context) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, activeRulesKey); err != nil {
		slog.Warn("failed to invalidate rule cache", "error", err)
	}
}
