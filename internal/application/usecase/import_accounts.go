package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Saltoleto/consulta-produtos/internal/application/dto"
	"github.com/Saltoleto/consulta-produtos/internal/domain/model"
	"github.com/Saltoleto/consulta-produtos/internal/domain/valueobject"
)

// ImportAccountsUseCase runs an import: ITAU lots, then OPF lots, then
// revocations, stopping at the first failing lot.
type ImportAccountsUseCase struct {
	lots        *LotProcessor
	revocations *RevocationProcessor
	metrics     *Metrics
	logger      *slog.Logger
	lotSize     int
}

// NewImportAccountsUseCase creates an ImportAccountsUseCase. A non-positive
// lotSize falls back to DefaultLotSize.
func NewImportAccountsUseCase(
	lots *LotProcessor,
	revocations *RevocationProcessor,
	lotSize int,
	metrics *Metrics,
	logger *slog.Logger,
) *ImportAccountsUseCase {
	if lotSize <= 0 {
		lotSize = DefaultLotSize
	}
	return &ImportAccountsUseCase{
		lots:        lots,
		revocations: revocations,
		metrics:     metrics,
		logger:      logger,
		lotSize:     lotSize,
	}
}

// Execute validates every record before touching the store, then processes
// lots strictly in sequence. On failure the returned response describes the
// lots committed before the failing one.
func (uc *ImportAccountsUseCase) Execute(ctx context.Context, req dto.ImportAccountsRequest) (dto.ImportAccountsResponse, error) {
	resp := dto.ImportAccountsResponse{
		ImportID:  uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	logger := uc.logger.With("import_id", resp.ImportID)

	ctx, span := tracer.Start(ctx, "import.accounts", trace.WithAttributes(
		attribute.String("import.id", resp.ImportID),
		attribute.Int("import.itau", len(req.ItauAccounts)),
		attribute.Int("import.opf", len(req.OPFAccounts)),
		attribute.Int("import.revoked", len(req.RevokedIDs)),
	))
	defer span.End()

	logger.InfoContext(ctx, "starting import",
		"itau", len(req.ItauAccounts),
		"opf", len(req.OPFAccounts),
		"revoked", len(req.RevokedIDs),
	)

	err := uc.run(ctx, req, &resp)

	resp.FinishedAt = time.Now().UTC()
	resp.DurationMs = resp.FinishedAt.Sub(resp.StartedAt).Milliseconds()
	uc.metrics.recordImport(ctx, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorContext(ctx, "import failed",
			"itau_lots", resp.Itau.Lots,
			"opf_lots", resp.OPF.Lots,
			"duration_ms", resp.DurationMs,
			"error", err,
		)
		return resp, err
	}

	logger.InfoContext(ctx, "import finished",
		"itau_lots", resp.Itau.Lots,
		"opf_lots", resp.OPF.Lots,
		"links_deleted", resp.Revocations.LinksDeleted,
		"duration_ms", resp.DurationMs,
	)
	return resp, nil
}

func (uc *ImportAccountsUseCase) run(ctx context.Context, req dto.ImportAccountsRequest, resp *dto.ImportAccountsResponse) error {
	itau := dto.ToRecords(req.ItauAccounts)
	opf := dto.ToRecords(req.OPFAccounts)

	if err := validate(itau, opf, req.RevokedIDs); err != nil {
		return err
	}

	if err := uc.importSource(ctx, itau, valueobject.SourceTypeItau, &resp.Itau); err != nil {
		return err
	}
	if err := uc.importSource(ctx, opf, valueobject.SourceTypeOPF, &resp.OPF); err != nil {
		return err
	}

	resp.Revocations.Requested = len(req.RevokedIDs)
	out, err := uc.revocations.Revoke(ctx, req.RevokedIDs)
	resp.Revocations.LinksDeleted = out.LinksDeleted
	resp.Revocations.Emissions = out.Emissions
	if err != nil {
		return fmt.Errorf("revoke accounts: %w", err)
	}
	return nil
}

func (uc *ImportAccountsUseCase) importSource(ctx context.Context, records []model.AccountRecord, sourceType valueobject.SourceType, summary *dto.SourceSummary) error {
	index := 0
	for lot := range Partition(records, uc.lotSize) {
		out, err := uc.lots.Process(ctx, lot, sourceType, index)
		if err != nil {
			return err
		}
		summary.Lots++
		summary.Records += out.Records
		summary.Created += out.Created
		summary.Existing += out.Existing
		summary.Emissions += out.Emissions
		index++
	}
	return nil
}

// validate rejects every malformed record and revoked id at once.
func validate(itau, opf []model.AccountRecord, revoked []string) error {
	var errs []error
	for _, src := range []struct {
		records    []model.AccountRecord
		sourceType valueobject.SourceType
	}{
		{itau, valueobject.SourceTypeItau},
		{opf, valueobject.SourceTypeOPF},
	} {
		for i, r := range src.records {
			if err := r.Validate(); err != nil {
				errs = append(errs, &model.RecordError{Err: err, SourceType: src.sourceType, Position: i})
			}
		}
	}
	for i, id := range revoked {
		if _, err := valueobject.NewAccountID(id); err != nil {
			errs = append(errs, fmt.Errorf("%w: revoked id %d: %w", model.ErrValidation, i, err))
		}
	}
	return errors.Join(errs...)
}
