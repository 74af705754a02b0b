package usecase

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/Saltoleto/consulta-produtos/internal/application/usecase"

var tracer = otel.Tracer(instrumentationName)

// Metrics holds the instruments recorded by the import pipeline.
type Metrics struct {
	lots         metric.Int64Counter
	records      metric.Int64Counter
	lotDuration  metric.Float64Histogram
	events       metric.Int64Counter
	rejected     metric.Int64Counter
	linksDeleted metric.Int64Counter
	imports      metric.Int64Counter
}

// NewMetrics creates the pipeline instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.lots, err = meter.Int64Counter("conta_import.lots",
		metric.WithDescription("Lots processed, by source type and status")); err != nil {
		return nil, fmt.Errorf("create lots counter: %w", err)
	}
	if m.records, err = meter.Int64Counter("conta_import.records",
		metric.WithDescription("Records committed, by source type")); err != nil {
		return nil, fmt.Errorf("create records counter: %w", err)
	}
	if m.lotDuration, err = meter.Float64Histogram("conta_import.lot.duration",
		metric.WithDescription("Lot transaction duration in seconds"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create lot duration histogram: %w", err)
	}
	if m.events, err = meter.Int64Counter("conta_import.events",
		metric.WithDescription("Emission outcomes, by topic and status")); err != nil {
		return nil, fmt.Errorf("create events counter: %w", err)
	}
	if m.rejected, err = meter.Int64Counter("conta_import.emissions.rejected",
		metric.WithDescription("Emission tasks the dispatcher did not accept")); err != nil {
		return nil, fmt.Errorf("create rejected counter: %w", err)
	}
	if m.linksDeleted, err = meter.Int64Counter("conta_import.links.deleted",
		metric.WithDescription("usuario_conta rows removed by revocations")); err != nil {
		return nil, fmt.Errorf("create links counter: %w", err)
	}
	if m.imports, err = meter.Int64Counter("conta_import.runs",
		metric.WithDescription("Import runs, by status")); err != nil {
		return nil, fmt.Errorf("create runs counter: %w", err)
	}
	return &m, nil
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *Metrics) recordLot(ctx context.Context, sourceType string, size int, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("source_type", sourceType),
		attribute.String("status", statusOf(err)),
	)
	m.lots.Add(ctx, 1, attrs)
	m.lotDuration.Record(ctx, elapsed.Seconds(), attrs)
	if err == nil {
		m.records.Add(ctx, int64(size), metric.WithAttributes(attribute.String("source_type", sourceType)))
	}
}

func (m *Metrics) recordEvent(ctx context.Context, topic, status string) {
	m.events.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("status", status),
	))
}

func (m *Metrics) recordRejected(ctx context.Context, reason string) {
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) recordLinksDeleted(ctx context.Context, n int64) {
	m.linksDeleted.Add(ctx, n)
}

func (m *Metrics) recordImport(ctx context.Context, err error) {
	m.imports.Add(ctx, 1, metric.WithAttributes(attribute.String("status", statusOf(err))))
}
