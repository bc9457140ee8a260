package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/WailSalutem-Health-Care/tenant-service"

// Metrics holds all custom metrics for the service
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal metric.Int64Counter
	HTTPDurationMs    metric.Float64Histogram

	// Business metrics
	OrganizationTotal  metric.Int64Counter
	LoginAttemptsTotal metric.Int64Counter
	RecordsCopiedTotal metric.Int64Counter

	// Auth metrics
	AuthFailuresTotal metric.Int64Counter
}

// InitMetrics initializes all custom metrics on the global meter provider
func InitMetrics() (*Metrics, error) {
	return NewMetrics(otel.GetMeterProvider())
}

// NewMetrics creates the service instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	httpRequestsTotal, err := meter.Int64Counter(
		"http_server_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	httpDurationMs, err := meter.Float64Histogram(
		"http_server_duration_milliseconds",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	organizationTotal, err := meter.Int64Counter(
		"organization_total",
		metric.WithDescription("Total number of organization operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	loginAttemptsTotal, err := meter.Int64Counter(
		"admin_login_attempts_total",
		metric.WithDescription("Total number of admin login attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	recordsCopiedTotal, err := meter.Int64Counter(
		"partition_records_copied_total",
		metric.WithDescription("Total number of records copied between partitions on rename"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	authFailuresTotal, err := meter.Int64Counter(
		"auth_failures_total",
		metric.WithDescription("Total number of authentication failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		HTTPRequestsTotal:  httpRequestsTotal,
		HTTPDurationMs:     httpDurationMs,
		OrganizationTotal:  organizationTotal,
		LoginAttemptsTotal: loginAttemptsTotal,
		RecordsCopiedTotal: recordsCopiedTotal,
		AuthFailuresTotal:  authFailuresTotal,
	}, nil
}

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, durationMs float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http_method", method),
		attribute.String("http_route", route),
		attribute.Int("http_status_code", statusCode),
	}

	m.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.HTTPDurationMs.Record(ctx, durationMs, metric.WithAttributes(attrs...))
}

// RecordOrganizationOperation records an organization operation metric
func (m *Metrics) RecordOrganizationOperation(ctx context.Context, operation string) {
	m.OrganizationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// RecordLoginAttempt records an admin login and whether it succeeded
func (m *Metrics) RecordLoginAttempt(ctx context.Context, success bool) {
	m.LoginAttemptsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", success),
	))
}

// RecordRecordsCopied adds the records moved by a rename
func (m *Metrics) RecordRecordsCopied(ctx context.Context, count int64) {
	m.RecordsCopiedTotal.Add(ctx, count)
}

// RecordAuthFailure records an authentication failure metric
func (m *Metrics) RecordAuthFailure(ctx context.Context, reason string) {
	m.AuthFailuresTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}
