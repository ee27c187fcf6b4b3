package output

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NotificationMessage asks the dispatcher to notify a tenant about a payment.
// Dispatch is fire-and-forget: a publish or delivery failure never affects
// the payment that triggered it.
type NotificationMessage struct {
	PaymentID uuid.UUID `json:"payment_id"`
	AgencyID  uuid.UUID `json:"agency_id"`
	LeaseID   uuid.UUID `json:"lease_id"`
	Amount    int64     `json:"amount"`
	Receipt   string    `json:"receipt"`
	Timestamp time.Time `json:"timestamp"`
}

// ScoreRecomputeMessage asks the worker to recompute a payer-reliability
// score after a successful payment.
type ScoreRecomputeMessage struct {
	LeaseID   uuid.UUID `json:"lease_id"`
	AgencyID  uuid.UUID `json:"agency_id"`
	Timestamp time.Time `json:"timestamp"`
}

// RetryTask is a durable re-invocation of a transiently failed callback.
// Attempt counts the attempts already made; NotBefore is when the next one
// may run. Tasks live on a queue so they survive a process restart.
type RetryTask struct {
	ExternalRef string          `json:"external_ref"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	NotBefore   time.Time       `json:"not_before"`
	LastError   string          `json:"last_error"`
}

// PaymentMessaging is an output port (secondary port) for payment messaging.
// Secondary adapters (RabbitMQ implementations) implement this.
type PaymentMessaging interface {
	// PublishNotification enqueues a tenant notification.
	PublishNotification(msg NotificationMessage) error
	// PublishScoreRecompute enqueues a payer-score recompute.
	PublishScoreRecompute(msg ScoreRecomputeMessage) error
	// PublishRetryTask enqueues a callback retry.
	PublishRetryTask(task RetryTask) error
	// Close closes the messaging connection.
	Close() error
}
