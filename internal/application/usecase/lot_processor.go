package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Saltoleto/consulta-produtos/internal/domain/event"
	"github.com/Saltoleto/consulta-produtos/internal/domain/model"
	"github.com/Saltoleto/consulta-produtos/internal/domain/port"
	"github.com/Saltoleto/consulta-produtos/internal/domain/valueobject"
)

// LotOutcome describes a committed lot.
type LotOutcome struct {
	Records   int
	Created   int
	Existing  int
	Emissions int
}

// LotProcessor applies one lot of one source type as a single transaction
// and emits a conta-criada event per record.
type LotProcessor struct {
	store        port.AccountStore
	dispatcher   port.Dispatcher
	emitter      *Emitter
	metrics      *Metrics
	logger       *slog.Logger
	diffExisting bool
}

// NewLotProcessor creates a LotProcessor. With diffExisting set, each lot
// first reports how many of its accounts already exist.
func NewLotProcessor(
	store port.AccountStore,
	dispatcher port.Dispatcher,
	emitter *Emitter,
	diffExisting bool,
	metrics *Metrics,
	logger *slog.Logger,
) *LotProcessor {
	return &LotProcessor{
		store:        store,
		dispatcher:   dispatcher,
		emitter:      emitter,
		metrics:      metrics,
		logger:       logger,
		diffExisting: diffExisting,
	}
}

// Process writes accounts, details, user links and (OPF only) consents in one
// transaction. Inline emission happens inside that transaction so a publish
// failure rolls the lot back; pooled emission is dispatched after commit.
// Any failure is returned as a *model.LotError.
func (p *LotProcessor) Process(ctx context.Context, lot []model.AccountRecord, sourceType valueobject.SourceType, index int) (LotOutcome, error) {
	if len(lot) == 0 {
		return LotOutcome{}, nil
	}

	ctx, span := tracer.Start(ctx, "import.lot", trace.WithAttributes(
		attribute.String("source_type", sourceType.String()),
		attribute.Int("lot.index", index),
		attribute.Int("lot.size", len(lot)),
	))
	defer span.End()

	start := time.Now()
	out := LotOutcome{Records: len(lot)}

	err := p.store.InTx(ctx, func(repo port.AccountRepository) error {
		if p.diffExisting {
			created, existing, err := p.diff(ctx, repo, lot)
			if err != nil {
				return err
			}
			out.Created, out.Existing = created, existing
		}
		if err := p.write(ctx, repo, lot, sourceType); err != nil {
			return err
		}
		if !p.dispatcher.Inline() {
			return nil
		}
		n, err := p.emitCreations(ctx, repo, lot)
		out.Emissions = n
		return err
	})

	elapsed := time.Since(start)
	p.metrics.recordLot(ctx, sourceType.String(), len(lot), elapsed, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.ErrorContext(ctx, "lot failed",
			"source_type", sourceType.String(),
			"lot_index", index,
			"lot_size", len(lot),
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
		)
		return LotOutcome{}, &model.LotError{Err: err, SourceType: sourceType, Index: index, Size: len(lot)}
	}

	if !p.dispatcher.Inline() {
		// The lot is committed; its events must still be queued if the caller gives up now.
		out.Emissions, _ = p.emitCreations(context.WithoutCancel(ctx), p.store, lot)
	}

	attrs := []any{
		"source_type", sourceType.String(),
		"lot_index", index,
		"lot_size", len(lot),
		"emissions", out.Emissions,
		"duration_ms", elapsed.Milliseconds(),
	}
	if p.diffExisting {
		attrs = append(attrs, "created", out.Created, "existing", out.Existing)
	}
	p.logger.InfoContext(ctx, "lot processed", attrs...)
	return out, nil
}

func (p *LotProcessor) write(ctx context.Context, repo port.AccountRepository, lot []model.AccountRecord, sourceType valueobject.SourceType) error {
	if err := repo.UpsertAccounts(ctx, lot, sourceType); err != nil {
		return fmt.Errorf("upsert accounts: %w", err)
	}
	if err := repo.UpsertDetails(ctx, lot); err != nil {
		return fmt.Errorf("upsert details: %w", err)
	}
	if err := repo.InsertUserLinks(ctx, lot); err != nil {
		return fmt.Errorf("insert user links: %w", err)
	}
	if sourceType.CarriesConsent() {
		if err := repo.UpsertConsents(ctx, lot); err != nil {
			return fmt.Errorf("upsert consents: %w", err)
		}
	}
	return nil
}

// diff counts distinct accounts of the lot that do not exist yet.
func (p *LotProcessor) diff(ctx context.Context, repo port.AccountRepository, lot []model.AccountRecord) (created, existing int, err error) {
	seen := make(map[string]struct{}, len(lot))
	ids := make([]string, 0, len(lot))
	for _, r := range lot {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		ids = append(ids, r.ID)
	}

	found, err := repo.ExistingAccountIDs(ctx, ids)
	if err != nil {
		return 0, 0, fmt.Errorf("load existing accounts: %w", err)
	}
	return len(ids) - len(found), len(found), nil
}

// emitCreations dispatches one conta-criada task per record in lot order and
// returns how many were accepted. reader must see the lot's writes.
func (p *LotProcessor) emitCreations(ctx context.Context, reader port.ViewReader, lot []model.AccountRecord) (int, error) {
	accepted := 0
	for _, r := range lot {
		accountID := r.ID
		ok, err := dispatch(ctx, p.dispatcher, port.Task{
			Name: event.TopicContaCriada + ":" + accountID,
			Run: func(ctx context.Context) error {
				_, err := p.emitter.Emit(ctx, reader, event.TopicContaCriada, accountID)
				return err
			},
		})
		if err != nil {
			return accepted, fmt.Errorf("emit %s: %w", event.TopicContaCriada, err)
		}
		if ok {
			accepted++
		}
	}
	return accepted, nil
}
