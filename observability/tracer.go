package observability

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/whisper-server/component"
	"github.com/kbukum/whisper-server/logger"
)

const defaultTracerName = "github.com/kbukum/whisper-server"

// TracerConfig configures the OpenTelemetry tracer.
type TracerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint   string  `mapstructure:"endpoint"`
	Insecure   bool    `mapstructure:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`

	ServiceName    string `mapstructure:"-"`
	ServiceVersion string `mapstructure:"-"`
	Environment    string `mapstructure:"-"`
}

// ApplyDefaults fills the exporter settings used in development.
func (c *TracerConfig) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRate == 0 && c.Enabled {
		c.SampleRate = 1.0
	}
}

// InitTracer initializes the OpenTelemetry tracer provider and installs it
// globally. The provider must be shut down on exit.
func InitTracer(ctx context.Context, cfg TracerConfig) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, nil
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

func newResource(serviceName, serviceVersion, environment string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String(AttrServiceName, serviceName),
			attribute.String("service.version", serviceVersion),
			attribute.String("deployment.environment", environment),
		),
	)
}

// Tracing owns the tracer provider lifecycle. When disabled it is a no-op
// and spans go to the global no-op provider.
type Tracing struct {
	cfg TracerConfig
	log *logger.Logger

	mu sync.Mutex
	tp *sdktrace.TracerProvider
}

var _ component.Component = (*Tracing)(nil)

// NewTracing creates the tracing component.
func NewTracing(cfg TracerConfig, log *logger.Logger) *Tracing {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Tracing{cfg: cfg, log: log.WithComponent("tracing")}
}

func (t *Tracing) Name() string { return "tracing" }

func (t *Tracing) Start(ctx context.Context) error {
	if !t.cfg.Enabled {
		t.log.Debug("tracing disabled")
		return nil
	}
	tp, err := InitTracer(ctx, t.cfg)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.tp = tp
	t.mu.Unlock()

	t.log.Info("tracer initialized", logger.Fields(
		"endpoint", t.cfg.Endpoint,
		"sample_rate", t.cfg.SampleRate,
	))
	return nil
}

func (t *Tracing) Stop(ctx context.Context) error {
	t.mu.Lock()
	tp := t.tp
	t.tp = nil
	t.mu.Unlock()
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

func (t *Tracing) Health(ctx context.Context) component.Health {
	msg := "disabled"
	if t.cfg.Enabled {
		msg = "exporting to " + t.cfg.Endpoint
	}
	return component.Health{Name: t.Name(), Status: component.StatusHealthy, Message: msg}
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a new span using the default tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer(defaultTracerName).Start(ctx, name, opts...)
}

// TraceID returns the hex trace id of the span in ctx, or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// SetSpanAttribute sets an attribute on the current span in context.
func SetSpanAttribute(ctx context.Context, key string, value any) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	switch v := value.(type) {
	case string:
		span.SetAttributes(attribute.String(key, v))
	case int:
		span.SetAttributes(attribute.Int(key, v))
	case int64:
		span.SetAttributes(attribute.Int64(key, v))
	case float64:
		span.SetAttributes(attribute.Float64(key, v))
	case bool:
		span.SetAttributes(attribute.Bool(key, v))
	case []string:
		span.SetAttributes(attribute.StringSlice(key, v))
	}
}

// SetSpanError records an error on the current span in context.
func SetSpanError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil && span.IsRecording() {
		span.RecordError(err)
	}
}

// Span names.
const (
	SpanHTTPRequest = "http.request"
	SpanTranscribe  = "transcription.run"
	SpanNormalize   = "transcription.normalize"
	SpanInference   = "transcription.inference"
	SpanEngineLoad  = "engine.load"
)

// Attribute keys.
const (
	AttrServiceName = "service.name"
	AttrModel       = "whisper.model"
	AttrFormat      = "audio.format"
	AttrAudioBytes  = "audio.bytes"
	AttrNormalizer  = "audio.normalizer"
	AttrFallback    = "audio.normalize_fallback"
)
