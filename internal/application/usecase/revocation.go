package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Saltoleto/consulta-produtos/internal/domain/event"
	"github.com/Saltoleto/consulta-produtos/internal/domain/model"
	"github.com/Saltoleto/consulta-produtos/internal/domain/port"
)

// RevocationOutcome describes a revocation call.
type RevocationOutcome struct {
	LinksDeleted int64
	Emissions    int
}

// RevocationProcessor removes user links of revoked accounts and emits
// conta-revogada events.
type RevocationProcessor struct {
	store        port.AccountStore
	dispatcher   port.Dispatcher
	emitter      *Emitter
	metrics      *Metrics
	logger       *slog.Logger
	captureViews bool
}

// NewRevocationProcessor creates a RevocationProcessor.
//
// With captureViews unset the view is looked up after the links are deleted,
// so an account whose only link was removed emits nothing. With captureViews
// set the views are read before the delete and every linked account emits.
func NewRevocationProcessor(
	store port.AccountStore,
	dispatcher port.Dispatcher,
	emitter *Emitter,
	captureViews bool,
	metrics *Metrics,
	logger *slog.Logger,
) *RevocationProcessor {
	return &RevocationProcessor{
		store:        store,
		dispatcher:   dispatcher,
		emitter:      emitter,
		metrics:      metrics,
		logger:       logger,
		captureViews: captureViews,
	}
}

// Revoke deletes the links of ids in one statement, then emits per id in
// input order. A failed delete aborts the call. Inline emission failures are
// collected and returned together once every id has been attempted.
func (p *RevocationProcessor) Revoke(ctx context.Context, ids []string) (RevocationOutcome, error) {
	if len(ids) == 0 {
		return RevocationOutcome{}, nil
	}

	ctx, span := tracer.Start(ctx, "import.revoke", trace.WithAttributes(
		attribute.Int("revoke.count", len(ids)),
		attribute.Bool("revoke.capture_views", p.captureViews),
	))
	defer span.End()

	var captured map[string]model.AccountUserView
	if p.captureViews {
		var err error
		if captured, err = p.capture(ctx, ids); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return RevocationOutcome{}, err
		}
	}

	deleted, err := p.store.DeleteUserLinks(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.ErrorContext(ctx, "revocation delete failed", "count", len(ids), "error", err)
		return RevocationOutcome{}, fmt.Errorf("delete user links: %w", err)
	}
	p.metrics.recordLinksDeleted(ctx, deleted)

	out := RevocationOutcome{LinksDeleted: deleted}
	dispatchCtx := ctx
	if !p.dispatcher.Inline() {
		// Links are already gone; queued events outlive the caller.
		dispatchCtx = context.WithoutCancel(ctx)
	}
	var errs []error
	for _, id := range ids {
		task, ok := p.task(id, captured)
		if !ok {
			p.metrics.recordEvent(ctx, event.TopicContaRevogada, "skipped")
			continue
		}
		accepted, err := dispatch(dispatchCtx, p.dispatcher, task)
		if err != nil {
			p.logger.ErrorContext(ctx, "revocation emission failed", "account_id", id, "error", err)
			errs = append(errs, fmt.Errorf("emit %s for %s: %w", event.TopicContaRevogada, id, err))
			continue
		}
		if accepted {
			out.Emissions++
		}
	}

	err = errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	p.logger.InfoContext(ctx, "revocations processed",
		"count", len(ids),
		"links_deleted", deleted,
		"emissions", out.Emissions,
		"failures", len(errs),
	)
	return out, err
}

func (p *RevocationProcessor) capture(ctx context.Context, ids []string) (map[string]model.AccountUserView, error) {
	views := make(map[string]model.AccountUserView, len(ids))
	for _, id := range ids {
		if _, ok := views[id]; ok {
			continue
		}
		v, found, err := p.store.FindAccountUserView(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("capture account user view %s: %w", id, err)
		}
		if found {
			views[id] = v
		}
	}
	return views, nil
}

// task builds the emission for id. With captured views, ids without a view
// are skipped up front.
func (p *RevocationProcessor) task(id string, captured map[string]model.AccountUserView) (port.Task, bool) {
	name := event.TopicContaRevogada + ":" + id
	if captured == nil {
		return port.Task{Name: name, Run: func(ctx context.Context) error {
			_, err := p.emitter.Emit(ctx, p.store, event.TopicContaRevogada, id)
			return err
		}}, true
	}

	view, ok := captured[id]
	if !ok {
		return port.Task{}, false
	}
	return port.Task{Name: name, Run: func(ctx context.Context) error {
		return p.emitter.Publish(ctx, event.TopicContaRevogada, view)
	}}, true
}
