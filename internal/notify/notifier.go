// Package notify delivers transition events to external sinks. Delivery is
// fire-and-forget: failures are logged and never block a state transition.
package notify

import (
	"context"
	"time"

	"github.com/bookline/bookline/internal/model"

	"go.uber.org/zap"
)

// Event describes one accepted status transition.
type Event struct {
	BusinessID string             `json:"business_id"`
	RequestID  string             `json:"request_id"`
	Action     string             `json:"action"`
	FromStatus model.RequestStatus `json:"from_status"`
	ToStatus   model.RequestStatus `json:"to_status"`
	Customer   model.CustomerInfo `json:"customer"`
	OccurredAt time.Time          `json:"occurred_at"`
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier is the default sink: it just records the event.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, event Event) error {
	n.logger.Info("booking transition",
		zap.String("business_id", event.BusinessID),
		zap.String("request_id", event.RequestID),
		zap.String("action", event.Action),
		zap.String("from", string(event.FromStatus)),
		zap.String("to", string(event.ToStatus)),
	)
	return nil
}
