package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader sdkmetric.Reader) map[string]metricdata.Aggregation {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()

	sum, ok := agg.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", agg)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordHTTPRequest(ctx, "POST", "/org/create", 201, 12.5)
	m.RecordOrganizationOperation(ctx, "create")
	m.RecordOrganizationOperation(ctx, "rename")
	m.RecordLoginAttempt(ctx, true)
	m.RecordLoginAttempt(ctx, false)
	m.RecordRecordsCopied(ctx, 42)
	m.RecordAuthFailure(ctx, "token_expired")

	got := collect(t, reader)
	assert.EqualValues(t, 1, sumOf(t, got["http_server_requests_total"]))
	assert.EqualValues(t, 2, sumOf(t, got["organization_total"]))
	assert.EqualValues(t, 2, sumOf(t, got["admin_login_attempts_total"]))
	assert.EqualValues(t, 42, sumOf(t, got["partition_records_copied_total"]))
	assert.EqualValues(t, 1, sumOf(t, got["auth_failures_total"]))

	hist, ok := got["http_server_duration_milliseconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.EqualValues(t, 1, hist.DataPoints[0].Count)
}

func TestInitProviderDisabled(t *testing.T) {
	p, err := InitProvider(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, p.TracerProvider)
	assert.Nil(t, p.MeterProvider)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	cfg := DefaultConfig()
	assert.Contains(t, sampler(cfg).Description(), "AlwaysOn")

	cfg.TracesSampler = "always_off"
	assert.Contains(t, sampler(cfg).Description(), "AlwaysOff")

	cfg.TracesSampler = "traceidratio"
	cfg.SampleRatio = 0.25
	assert.Contains(t, sampler(cfg).Description(), "TraceIDRatioBased{0.25}")
}
