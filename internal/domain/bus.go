package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (Community) or NATS (Pro).
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (Community tier)
	ChannelBufferSize int

	// NATS settings (Pro tier)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Standard topic names for the scoring pipeline.
const (
	// TopicScoreRecompute carries an agent user ID whose score should be
	// recomputed (async worker mode).
	TopicScoreRecompute = "kestrel.score.recompute"

	// TopicScoreUpdated is published after a pipeline run persists a new
	// score. The pipeline itself dispatches no notifications.
	TopicScoreUpdated = "kestrel.score.updated"

	// TopicNotification carries notification sink records for delivery by
	// external consumers.
	TopicNotification = "kestrel.notification"
)

// ScoreRecomputeEvent is the payload on TopicScoreRecompute.
type ScoreRecomputeEvent struct {
	AgentUserID string `json:"agentUserId"`
	Trigger     string `json:"trigger"` // "transaction", "check-in", "audit"
}

// ScoreUpdatedEvent is the payload on TopicScoreUpdated.
type ScoreUpdatedEvent struct {
	AgentUserID string    `json:"agentUserId"`
	FraudScore  int       `json:"fraudScore"`
	RiskLevel   RiskLevel `json:"riskLevel"`
}
