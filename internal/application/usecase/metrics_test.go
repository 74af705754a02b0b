package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Saltoleto/consulta-produtos/internal/application/usecase"
	"github.com/Saltoleto/consulta-produtos/internal/domain/model"
	"github.com/Saltoleto/consulta-produtos/internal/domain/valueobject"
)

func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name string, attr attribute.KeyValue) int64 {
	t.Helper()
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attr.Key); ok && v.Emit() == attr.Value.Emit() {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestMetrics_RecordsLotOutcomes(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := usecase.NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	store := newFakeStore()
	pub := newFakePublisher()
	dispatcher := usecase.NewInlineDispatcher()
	emitter := usecase.NewEmitter(pub, 0, metrics, testLogger())
	lots := usecase.NewLotProcessor(store, dispatcher, emitter, false, metrics, testLogger())

	ctx := context.Background()
	_, err = lots.Process(ctx, []model.AccountRecord{{ID: "A1", UserID: 1}, {ID: "A2", UserID: 1}}, valueobject.SourceTypeItau, 0)
	require.NoError(t, err)

	store.failWith("UpsertDetails", model.ErrStore)
	_, err = lots.Process(ctx, []model.AccountRecord{{ID: "A3", UserID: 1}}, valueobject.SourceTypeItau, 1)
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	assert.Equal(t, int64(1), sumFor(t, rm, "conta_import.lots", attribute.String("status", "success")))
	assert.Equal(t, int64(1), sumFor(t, rm, "conta_import.lots", attribute.String("status", "error")))
	assert.Equal(t, int64(2), sumFor(t, rm, "conta_import.records", attribute.String("source_type", "ITAU")))
	assert.Equal(t, int64(2), sumFor(t, rm, "conta_import.events", attribute.String("status", "published")))
}
