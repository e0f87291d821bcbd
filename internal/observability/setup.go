package observability

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	promreg "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/voicepartnerai/platform/internal/config"
)

type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *metric.MeterProvider
	promExporter   *prometheus.Exporter
	promHandler    http.Handler
	shutdownFuncs  []func(context.Context) error

	httpRequestCounter *promreg.CounterVec
	httpRequestLatency *promreg.HistogramVec
	callsFinalized     *promreg.CounterVec
	creditsConsumed    *promreg.CounterVec
	keyValidations     *promreg.CounterVec
	rateLimitRejects   *promreg.CounterVec
	usageLogFailures   promreg.Counter
}

func Setup(ctx context.Context, cfg config.ObservabilityConfig) (*Provider, error) {
	if !cfg.EnableOTLP && !cfg.EnableMetrics {
		return nil, nil
	}

	provider := &Provider{}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("voicepartner-platform"),
		),
	)
	if err != nil {
		return nil, err
	}

	if cfg.EnableOTLP {
		rawEndpoint := strings.TrimSpace(cfg.OTLPEndpoint)
		endpoint := rawEndpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		opts := []otlptracegrpc.Option{}
		switch {
		case strings.HasPrefix(endpoint, "http://"):
			endpoint = strings.TrimPrefix(endpoint, "http://")
			opts = append(opts, otlptracegrpc.WithInsecure())
		case strings.HasPrefix(endpoint, "https://"):
			endpoint = strings.TrimPrefix(endpoint, "https://")
		default:
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))

		client := otlptracegrpc.NewClient(opts...)
		exporter, err := otlptrace.New(ctx, client)
		if err != nil {
			return nil, err
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		provider.tracerProvider = tp
		provider.shutdownFuncs = append(provider.shutdownFuncs, tp.Shutdown)
	}

	if cfg.EnableMetrics {
		registry := promreg.NewRegistry()
		promExporter, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return nil, err
		}
		mp := metric.NewMeterProvider(
			metric.WithReader(promExporter),
			metric.WithResource(res),
		)
		otel.SetMeterProvider(mp)
		provider.meterProvider = mp
		provider.promExporter = promExporter
		provider.promHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
		provider.shutdownFuncs = append(provider.shutdownFuncs, mp.Shutdown)

		httpRequests := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: "voicepartner",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed.",
			},
			[]string{"method", "route", "status"},
		)
		latencyBuckets := []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10}
		httpLatency := promreg.NewHistogramVec(
			promreg.HistogramOpts{
				Namespace: "voicepartner",
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds.",
				Buckets:   latencyBuckets,
			},
			[]string{"method", "route", "status"},
		)
		callsFinalized := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: "voicepartner",
				Name:      "calls_finalized_total",
				Help:      "Calls that reached a terminal status.",
			},
			[]string{"status"},
		)
		creditsConsumed := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: "voicepartner",
				Name:      "credits_consumed_total",
				Help:      "Credits billed for finalized calls.",
			},
			[]string{"tier"},
		)
		keyValidations := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: "voicepartner",
				Name:      "api_key_validations_total",
				Help:      "API key validation attempts by outcome.",
			},
			[]string{"outcome"},
		)
		rateLimitRejects := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: "voicepartner",
				Name:      "rate_limit_rejections_total",
				Help:      "Requests rejected by the rate limiter.",
			},
			[]string{"window"},
		)
		usageLogFailures := promreg.NewCounter(
			promreg.CounterOpts{
				Namespace: "voicepartner",
				Name:      "usage_log_failures_total",
				Help:      "Usage events that could not be written after an admitted request.",
			},
		)
		collectors := []promreg.Collector{httpRequests, httpLatency, callsFinalized, creditsConsumed, keyValidations, rateLimitRejects, usageLogFailures}
		for _, c := range collectors {
			if err := registry.Register(c); err != nil {
				return nil, err
			}
		}
		provider.httpRequestCounter = httpRequests
		provider.httpRequestLatency = httpLatency
		provider.callsFinalized = callsFinalized
		provider.creditsConsumed = creditsConsumed
		provider.keyValidations = keyValidations
		provider.rateLimitRejects = rateLimitRejects
		provider.usageLogFailures = usageLogFailures
	}

	return provider, nil
}

func (p *Provider) PrometheusHandler() http.Handler {
	if p == nil || p.promHandler == nil {
		return nil
	}
	return p.promHandler
}

func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) TracerProvider() *sdktrace.TracerProvider {
	if p == nil {
		return nil
	}
	return p.tracerProvider
}

func (p *Provider) RecordHTTPRequest(_ context.Context, method, route string, status int, duration time.Duration) {
	if p == nil {
		return
	}

	statusLabel := strconv.Itoa(status)

	if p.httpRequestCounter != nil {
		p.httpRequestCounter.WithLabelValues(method, route, statusLabel).Inc()
	}

	if p.httpRequestLatency != nil {
		p.httpRequestLatency.WithLabelValues(method, route, statusLabel).Observe(duration.Seconds())
	}
}

// RecordCallFinalized counts a call reaching a terminal status and the
// credits it consumed.
func (p *Provider) RecordCallFinalized(status, tier string, credits float64) {
	if p == nil {
		return
	}
	if p.callsFinalized != nil {
		p.callsFinalized.WithLabelValues(status).Inc()
	}
	if p.creditsConsumed != nil && credits > 0 {
		p.creditsConsumed.WithLabelValues(tier).Add(credits)
	}
}

// RecordKeyValidation counts an API key validation attempt. Outcome is one of
// ok, invalid, ip_blocked, or rate_limited.
func (p *Provider) RecordKeyValidation(outcome string) {
	if p == nil || p.keyValidations == nil {
		return
	}
	p.keyValidations.WithLabelValues(outcome).Inc()
}

// RecordRateLimitRejection counts a rejection attributed to the window that
// tripped first.
func (p *Provider) RecordRateLimitRejection(window string) {
	if p == nil || p.rateLimitRejects == nil {
		return
	}
	p.rateLimitRejects.WithLabelValues(window).Inc()
}

// RecordUsageLogFailure counts a usage event that was lost after the request
// was already admitted. The request itself is never failed for this.
func (p *Provider) RecordUsageLogFailure() {
	if p == nil || p.usageLogFailures == nil {
		return
	}
	p.usageLogFailures.Inc()
}
