// Package notify implements the notification sink. Delivery (push, email)
// happens outside this service; Kestrel records the notification and
// publishes it on the bus for downstream delivery consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Notifier records and publishes notifications.
type Notifier struct {
	repo domain.Repository
	bus  domain.EventBus
}

// New creates a notifier. bus may be nil; persistence alone is enough for
// the portal to render the notification.
func New(repo domain.Repository, bus domain.EventBus) *Notifier {
	return &Notifier{repo: repo, bus: bus}
}

// Notify records a notification for a user. Persistence failures are
// returned; publish failures are logged only, the stored row is the
// source of truth.
func (n *Notifier) Notify(ctx context.Context, userID, title, message, typ, actionURL string) (*domain.Notification, error) {
	record := &domain.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      typ,
		ActionURL: actionURL,
		CreatedAt: time.Now().UTC(),
	}

	if err := n.repo.SaveNotification(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save notification: %w", err)
	}

	if n.bus != nil {
		payload, _ := json.Marshal(record)
		if err := n.bus.Publish(ctx, domain.TopicNotification, payload); err != nil {
			slog.Warn("failed to publish notification", "user_id", userID, "error", err)
		}
	}

	return record, nil
}
