package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"csvpulse/pkg/contracts"
)

// MeterName is the instrumentation scope for all csvpulse instruments.
const MeterName = "csvpulse"

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	EnableTracing  bool
	EnableMetrics  bool
	SampleRatio    float64
	// TraceWriter receives exported spans. Defaults to stdout.
	TraceWriter io.Writer
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	// PrometheusHTTP serves the scrape endpoint. Nil when metrics are disabled.
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// DefaultOTelConfig returns metrics on and tracing off.
func DefaultOTelConfig() *OTelConfig {
	return &OTelConfig{
		ServiceName:    MeterName,
		ServiceVersion: contracts.Version,
		EnableMetrics:  true,
		SampleRatio:    1.0,
	}
}

// InitializeOTel sets up tracing and metrics. Disabled signals fall back to
// no-op implementations so callers never need nil checks.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}
	ctx := context.Background()

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		attribute.String("service.instance.id", generateInstanceID()),
	)

	providers := &OTelProviders{
		Tracer: otel.Tracer(MeterName),
		Meter:  noop.NewMeterProvider().Meter(MeterName),
		Logger: logger,
	}

	if cfg.EnableTracing {
		if err := initializeTracing(cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if cfg.EnableMetrics {
		if err := initializeMetrics(cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	return providers, nil
}

func initializeTracing(cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	w := cfg.TraceWriter
	if w == nil {
		w = os.Stdout
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)
	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)
	return nil
}

// initializeMetrics wires a Prometheus exporter to a private registry so
// repeated initialization in one process does not collide.
func initializeMetrics(cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	registry := promclient.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	providers.MeterProvider = mp
	providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
	providers.PrometheusHTTP = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	otel.SetMeterProvider(mp)
	return nil
}

// Shutdown flushes and stops the providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// DashboardMetrics holds the application instruments
type DashboardMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	PipelineRunsTotal metric.Int64Counter
	PipelineDuration  metric.Float64Histogram
	UploadsTotal      metric.Int64Counter
	UploadBytes       metric.Int64Histogram
	SessionsActive    metric.Int64Gauge
	ExportsTotal      metric.Int64Counter
	ChartsTotal       metric.Int64Counter

	LiveConnections metric.Int64Gauge
	LiveMessages    metric.Int64Counter
}

// NewDashboardMetrics creates the instruments on meter. A nil meter yields no-op instruments.
func NewDashboardMetrics(meter metric.Meter) (*DashboardMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(MeterName)
	}

	var (
		m    DashboardMetrics
		errs []error
	)
	add := func(err error) { errs = append(errs, err) }

	var err error
	m.HTTPRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests"))
	add(err)
	m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"), metric.WithUnit("s"))
	add(err)
	m.HTTPActiveRequests, err = meter.Int64UpDownCounter("http_active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"))
	add(err)
	m.PipelineRunsTotal, err = meter.Int64Counter("pipeline_runs_total",
		metric.WithDescription("Filter and aggregate evaluations"))
	add(err)
	m.PipelineDuration, err = meter.Float64Histogram("pipeline_duration_seconds",
		metric.WithDescription("Time spent evaluating a view"), metric.WithUnit("s"))
	add(err)
	m.UploadsTotal, err = meter.Int64Counter("uploads_total",
		metric.WithDescription("Files loaded into sessions"))
	add(err)
	m.UploadBytes, err = meter.Int64Histogram("upload_bytes",
		metric.WithDescription("Size of loaded files"), metric.WithUnit("By"))
	add(err)
	m.SessionsActive, err = meter.Int64Gauge("sessions_active",
		metric.WithDescription("Sessions currently held in memory"))
	add(err)
	m.ExportsTotal, err = meter.Int64Counter("exports_total",
		metric.WithDescription("Narrowed tables downloaded"))
	add(err)
	m.ChartsTotal, err = meter.Int64Counter("charts_total",
		metric.WithDescription("Section charts rendered"))
	add(err)
	m.LiveConnections, err = meter.Int64Gauge("live_connections",
		metric.WithDescription("Open live view connections"))
	add(err)
	m.LiveMessages, err = meter.Int64Counter("live_messages_total",
		metric.WithDescription("Criteria messages answered over live connections"))
	add(err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &m, nil
}

func statusAttr(err error) attribute.KeyValue {
	if err != nil {
		return attribute.String("status", "failure")
	}
	return attribute.String("status", "success")
}

// RecordPipelineRun records one view evaluation
func (m *DashboardMetrics) RecordPipelineRun(ctx context.Context, profile string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("profile", profile), statusAttr(err))
	m.PipelineRunsTotal.Add(ctx, 1, attrs)
	m.PipelineDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordUpload records a file load attempt
func (m *DashboardMetrics) RecordUpload(ctx context.Context, format string, size int64, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("format", format), statusAttr(err))
	m.UploadsTotal.Add(ctx, 1, attrs)
	if err == nil {
		m.UploadBytes.Record(ctx, size, metric.WithAttributes(attribute.String("format", format)))
	}
}

// RecordExport records a download
func (m *DashboardMetrics) RecordExport(ctx context.Context, format string, err error) {
	if m == nil {
		return
	}
	m.ExportsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("format", format), statusAttr(err)))
}

// RecordChart records a rendered chart
func (m *DashboardMetrics) RecordChart(ctx context.Context, section string, err error) {
	if m == nil {
		return
	}
	m.ChartsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("section", section), statusAttr(err)))
}

// RecordSessions sets the live session gauge
func (m *DashboardMetrics) RecordSessions(ctx context.Context, active int) {
	if m == nil {
		return
	}
	m.SessionsActive.Record(ctx, int64(active))
}

// RecordLiveConnections sets the open live connection gauge
func (m *DashboardMetrics) RecordLiveConnections(ctx context.Context, active int) {
	if m == nil {
		return
	}
	m.LiveConnections.Record(ctx, int64(active))
}

// RecordLiveMessage records one answered live message
func (m *DashboardMetrics) RecordLiveMessage(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.LiveMessages.Add(ctx, 1, metric.WithAttributes(statusAttr(err)))
}

func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext returns the OpenTelemetry trace ID of the active span, if any.
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
