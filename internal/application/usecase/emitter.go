package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Saltoleto/consulta-produtos/internal/domain/event"
	"github.com/Saltoleto/consulta-produtos/internal/domain/model"
	"github.com/Saltoleto/consulta-produtos/internal/domain/port"
)

// Emitter turns an account into a published conta message.
type Emitter struct {
	publisher port.EventPublisher
	metrics   *Metrics
	logger    *slog.Logger
	timeout   time.Duration
}

// NewEmitter creates an Emitter. A zero timeout leaves publishes bounded only
// by the caller's context.
func NewEmitter(publisher port.EventPublisher, timeout time.Duration, metrics *Metrics, logger *slog.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		timeout:   timeout,
	}
}

// Emit loads the account-user view through reader and publishes it to topic.
// An account without a linked user publishes nothing and reports false.
func (e *Emitter) Emit(ctx context.Context, reader port.ViewReader, topic, accountID string) (bool, error) {
	view, found, err := reader.FindAccountUserView(ctx, accountID)
	if err != nil {
		e.metrics.recordEvent(ctx, topic, "lookup_failed")
		return false, fmt.Errorf("load account user view %s: %w", accountID, err)
	}
	if !found {
		e.metrics.recordEvent(ctx, topic, "skipped")
		e.logger.DebugContext(ctx, "no linked user, nothing to emit", "topic", topic, "account_id", accountID)
		return false, nil
	}
	return true, e.Publish(ctx, topic, view)
}

// Publish sends an already loaded view to topic, keyed by the account id.
func (e *Emitter) Publish(ctx context.Context, topic string, view model.AccountUserView) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	msg := event.NewContaMessage(topic, view)
	if err := e.publisher.Publish(ctx, topic, msg); err != nil {
		e.metrics.recordEvent(ctx, topic, "publish_failed")
		return fmt.Errorf("publish %s for account %s: %w", topic, view.AccountID, err)
	}

	e.metrics.recordEvent(ctx, topic, "published")
	e.logger.InfoContext(ctx, "event published",
		"topic", topic,
		"account_id", view.AccountID,
		"user_id", view.UserID,
		"event_id", msg.EventID(),
	)
	return nil
}
