package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/DjordjeVuckovic/editorial-hub/internal/storage"
)

// Sink delivers one notification. Deliveries may be retried, so sinks should
// treat Notification.ID as an idempotency key.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n domain.Notification) error
}

type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) Name() string {
	return "log"
}

func (s *LogSink) Deliver(ctx context.Context, n domain.Notification) error {
	slog.Info("Notification",
		"id", n.ID,
		"kind", n.Kind,
		"recipient", n.RecipientID,
		"article", n.ArticleID,
		"subject", n.Subject)
	return nil
}

// InAppSink stores notifications as in-app messages.
type InAppSink struct {
	messages storage.MessageStore
}

func NewInAppSink(messages storage.MessageStore) *InAppSink {
	return &InAppSink{messages: messages}
}

func (s *InAppSink) Name() string {
	return "in_app"
}

func (s *InAppSink) Deliver(ctx context.Context, n domain.Notification) error {
	if err := s.messages.SaveMessage(ctx, n); err != nil {
		return fmt.Errorf("failed to save message %s: %w", n.ID, err)
	}
	return nil
}
