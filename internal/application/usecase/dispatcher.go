package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Saltoleto/consulta-produtos/internal/domain/port"
	"github.com/Saltoleto/consulta-produtos/pkg/workerpool"
)

// EmissionMode selects the dispatcher used for event emission.
type EmissionMode string

const (
	EmissionSync  EmissionMode = "sync"
	EmissionAsync EmissionMode = "async"
)

// InlineDispatcher runs tasks on the caller goroutine.
type InlineDispatcher struct{}

// NewInlineDispatcher creates an InlineDispatcher.
func NewInlineDispatcher() *InlineDispatcher {
	return &InlineDispatcher{}
}

func (*InlineDispatcher) Inline() bool { return true }

func (*InlineDispatcher) Dispatch(ctx context.Context, t port.Task) error {
	return t.Run(ctx)
}

func (*InlineDispatcher) Shutdown(context.Context) error { return nil }

// TaskPool is the subset of workerpool.Pool used by PooledDispatcher.
type TaskPool interface {
	Submit(ctx context.Context, name string, fn workerpool.Task) error
	Shutdown(ctx context.Context) error
}

// PooledDispatcher hands tasks to a bounded worker pool. Task failures are
// logged by the pool; rejected submissions are logged and counted here and
// returned so callers can tell accepted tasks apart.
type PooledDispatcher struct {
	pool    TaskPool
	metrics *Metrics
	logger  *slog.Logger
}

// NewPooledDispatcher creates a PooledDispatcher over pool. The dispatcher
// owns the pool: Shutdown drains and closes it.
func NewPooledDispatcher(pool TaskPool, metrics *Metrics, logger *slog.Logger) *PooledDispatcher {
	return &PooledDispatcher{pool: pool, metrics: metrics, logger: logger}
}

func (*PooledDispatcher) Inline() bool { return false }

func (d *PooledDispatcher) Dispatch(ctx context.Context, t port.Task) error {
	err := d.pool.Submit(ctx, t.Name, t.Run)
	if err == nil {
		return nil
	}

	reason := "error"
	switch {
	case errors.Is(err, workerpool.ErrQueueFull):
		reason = "queue_full"
	case errors.Is(err, workerpool.ErrSubmitTimeout):
		reason = "submit_timeout"
	case errors.Is(err, workerpool.ErrPoolClosed):
		reason = "closed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		reason = "cancelled"
	}
	d.metrics.recordRejected(ctx, reason)
	d.logger.WarnContext(ctx, "emission task rejected", "task", t.Name, "reason", reason, "error", err)
	return err
}

func (d *PooledDispatcher) Shutdown(ctx context.Context) error {
	return d.pool.Shutdown(ctx)
}

// dispatch hands t to d and reports whether it was accepted. Only inline
// failures are returned; pooled rejections were already logged and counted.
func dispatch(ctx context.Context, d port.Dispatcher, t port.Task) (bool, error) {
	err := d.Dispatch(ctx, t)
	switch {
	case err == nil:
		return true, nil
	case d.Inline():
		return false, err
	default:
		return false, nil
	}
}
