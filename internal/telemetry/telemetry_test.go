package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		config        *Config
		errorContains string
	}{
		{name: "nil config"},
		{name: "disabled", config: &Config{Enabled: false}},
		{
			name: "enabled with everything off",
			config: &Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: false},
				Metrics: &MetricsConfig{Enabled: false},
			},
		},
		{
			name: "invalid sampling",
			config: &Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: true, Sampling: 1.5},
			},
			errorContains: "invalid telemetry configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			tel, err := New(ctx, WithTelemetryConfig(tt.config))
			if tt.errorContains != "" {
				require.ErrorContains(t, err, tt.errorContains)
				return
			}
			require.NoError(t, err)

			_, ok := tel.TracerProvider().(tracenoop.TracerProvider)
			assert.True(t, ok, "expected no-op tracer provider")
			_, ok = tel.MeterProvider().(noop.MeterProvider)
			assert.True(t, ok, "expected no-op meter provider")
			assert.Nil(t, tel.MetricsHandler())
			require.NoError(t, tel.Shutdown(ctx))
		})
	}
}

func TestNew_PrometheusHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tel, err := New(ctx, WithTelemetryConfig(&Config{
		Enabled:  true,
		Insecure: true,
		Metrics:  &MetricsConfig{Enabled: true, Prometheus: true},
	}))
	require.NoError(t, err)
	defer func() { _ = tel.Shutdown(ctx) }()

	_, ok := tel.MeterProvider().(*sdkmetric.MeterProvider)
	require.True(t, ok, "expected SDK meter provider")

	metrics, err := NewSyncMetrics(tel.MeterProvider())
	require.NoError(t, err)
	metrics.RecordRows(ctx, "lore", OutcomeSynced, 4)

	handler := tel.MetricsHandler()
	require.NotNil(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "loresync_sync_rows")
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := collectorFor(&Config{})
	res, err := c.resource(ctx)
	require.NoError(t, err)

	tp, err := newTracerProvider(ctx, c, res, &TracingConfig{Enabled: false})
	require.NoError(t, err)
	_, ok := tp.(tracenoop.TracerProvider)
	assert.True(t, ok)

	mp, err := newMeterProvider(ctx, c, res, nil, nil)
	require.NoError(t, err)
	_, ok = mp.(noop.MeterProvider)
	assert.True(t, ok)
}

func TestMetricsConfig_GetExportInterval(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultExportInterval, (&MetricsConfig{}).GetExportInterval())
	assert.Equal(t, 15*time.Second, (&MetricsConfig{ExportInterval: 15 * time.Second}).GetExportInterval())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, (*Config)(nil).Validate())
	assert.NoError(t, (&Config{Tracing: &TracingConfig{Enabled: true, Sampling: 3}}).Validate())

	err := (&Config{
		Enabled: true,
		Tracing: &TracingConfig{Enabled: true, Sampling: -0.1},
		Metrics: &MetricsConfig{Enabled: true, ExportInterval: -time.Second},
	}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tracing: sampling")
	assert.Contains(t, err.Error(), "metrics: exportInterval")
}

func TestTracingConfig_GetSampling(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, DefaultSampling, (&TracingConfig{}).GetSampling(), 1e-9)
	assert.InDelta(t, 0.5, (&TracingConfig{Sampling: 0.5}).GetSampling(), 1e-9)
}

func TestHTTPMiddleware_UsesRoutePattern(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	httpMetrics, err := NewHTTPMetrics(mp)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(TracingMiddleware(tp))
	r.Use(httpMetrics.Middleware)
	r.Get("/v1/users/{userID}/status", func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(time.Millisecond)
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/users/42/status", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /v1/users/{userID}/status", spans[0].Name())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var routes []string
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "loresync_http_requests_total" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				route, _ := dp.Attributes.Value("route")
				routes = append(routes, route.AsString())
			}
		}
	}
	assert.Equal(t, []string{"/v1/users/{userID}/status"}, routes)
}
