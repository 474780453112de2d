// Package worker provides async score recomputation off the request path.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// Worker consumes recompute events from the EventBus and runs the scoring
// pipeline. Used when async recompute is enabled so a scoring failure can
// never fail the triggering request.
type Worker struct {
	bus     domain.EventBus
	scoring *scoring.Service

	sub    domain.Subscription
	ctx    context.Context
	cancel context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, svc *scoring.Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		scoring: svc,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes to the recompute topic and begins processing.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicScoreRecompute, w.handle)
	if err != nil {
		return err
	}
	w.sub = sub

	slog.Info("score recompute worker started", "topic", domain.TopicScoreRecompute)
	return nil
}

func (w *Worker) handle(ctx context.Context, msg *domain.Message) error {
	var event domain.ScoreRecomputeEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to decode recompute event", "message_id", msg.ID, "error", err)
		return nil
	}

	if event.AgentUserID == "" {
		slog.Warn("recompute event without agent user id", "message_id", msg.ID)
		return nil
	}

	score, level, err := w.scoring.Recompute(ctx, event.AgentUserID)
	if err != nil {
		// Best effort: the score is a derived cache, a later trigger
		// self-corrects it.
		slog.Error("async recompute failed",
			"agent_user_id", event.AgentUserID,
			"trigger", event.Trigger,
			"error", err,
		)
		return nil
	}

	slog.Info("async recompute complete",
		"agent_user_id", event.AgentUserID,
		"trigger", event.Trigger,
		"score", score,
		"risk_level", level,
	)
	return nil
}

// Stop cancels the subscription and halts processing.
func (w *Worker) Stop() error {
	w.cancel()
	if w.sub != nil {
		return w.sub.Unsubscribe()
	}
	return nil
}
