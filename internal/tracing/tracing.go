// Package tracing exports OpenTelemetry spans to Langfuse over OTLP/HTTP.
package tracing

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// ErrInvalidSettings is returned when required Langfuse keys are missing.
var ErrInvalidSettings = errors.New("invalid langfuse settings")

// ExportTimeout bounds a single export request.
const ExportTimeout = 5 * time.Second

// Settings are the Langfuse connection settings.
type Settings struct {
	PublicKey      string `mapstructure:"langfuse_public_key"`
	SecretKey      string `mapstructure:"langfuse_secret_key"`
	BaseURL        string `mapstructure:"langfuse_base_url"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
}

// LoadSettings reads the settings from the environment, case-insensitively.
func LoadSettings(v *viper.Viper) (Settings, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetDefault("langfuse_public_key", "")
	v.SetDefault("langfuse_secret_key", "")
	v.SetDefault("langfuse_base_url", "http://langfuse-web:3000")
	v.SetDefault("service_name", "superpod-backend")
	v.SetDefault("service_version", "1.0.0")
	v.AutomaticEnv()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to unmarshal langfuse settings: %w", err)
	}
	return s, s.Validate()
}

// Validate reports missing required keys.
func (s Settings) Validate() error {
	var missing []string
	if s.PublicKey == "" {
		missing = append(missing, "LANGFUSE_PUBLIC_KEY")
	}
	if s.SecretKey == "" {
		missing = append(missing, "LANGFUSE_SECRET_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidSettings, strings.Join(missing, ", "))
	}
	return nil
}

// Endpoint is the OTLP traces URL of the Langfuse instance.
func (s Settings) Endpoint() string {
	return strings.TrimRight(s.BaseURL, "/") + "/api/public/otel/v1/traces"
}

// AuthHeader is the Basic credential built from the key pair.
func (s Settings) AuthHeader() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(s.PublicKey+":"+s.SecretKey))
}

// ExporterFactory builds the span exporter for the given settings.
type ExporterFactory func(ctx context.Context, s Settings) (sdktrace.SpanExporter, error)

// NewOTLPExporter is the default ExporterFactory.
func NewOTLPExporter(ctx context.Context, s Settings) (sdktrace.SpanExporter, error) {
	return otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(s.Endpoint()),
		otlptracehttp.WithHeaders(map[string]string{"Authorization": s.AuthHeader()}),
		otlptracehttp.WithTimeout(ExportTimeout),
	)
}

// Bootstrapper owns the process tracer provider. Init may be called any
// number of times; it never panics and never aborts the caller.
type Bootstrapper struct {
	mu       sync.Mutex
	logger   *zap.Logger
	load     func() (Settings, error)
	exporter ExporterFactory
	provider *sdktrace.TracerProvider
	enabled  bool
}

// NewBootstrapper returns a bootstrapper reading settings with load. Nil
// arguments fall back to the environment and the OTLP exporter.
func NewBootstrapper(logger *zap.Logger, load func() (Settings, error), exporter ExporterFactory) *Bootstrapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if load == nil {
		load = func() (Settings, error) { return LoadSettings(nil) }
	}
	if exporter == nil {
		exporter = NewOTLPExporter
	}
	return &Bootstrapper{logger: logger, load: load, exporter: exporter}
}

// Init installs the tracer provider and reports whether tracing is enabled.
func (b *Bootstrapper) Init(ctx context.Context, force bool) (enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.enabled && !force {
		return true
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Tracing initialization panicked; continuing without tracing", zap.Any("panic", r))
			b.reset()
			enabled = false
		}
	}()

	settings, err := b.load()
	if err != nil {
		b.logger.Warn("Langfuse env not configured; tracing disabled", zap.Error(err))
		b.enabled = false
		return false
	}

	exp, err := b.exporter(ctx, settings)
	if err != nil {
		b.logger.Error("Tracing initialization failed; continuing without tracing", zap.Error(err))
		b.reset()
		return false
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", settings.ServiceName),
		attribute.String("service.version", settings.ServiceVersion),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	if b.provider != nil {
		_ = b.provider.Shutdown(ctx)
	}
	b.provider = tp
	b.enabled = true
	b.logger.Info("Langfuse tracing initialized",
		zap.String("endpoint", settings.Endpoint()),
		zap.String("service", settings.ServiceName))
	return true
}

func (b *Bootstrapper) reset() {
	b.enabled = false
	b.provider = nil
}

// Enabled reports whether the last Init succeeded.
func (b *Bootstrapper) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// Provider returns the installed provider, or nil when disabled.
func (b *Bootstrapper) Provider() *sdktrace.TracerProvider {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.provider
}

// Shutdown flushes pending spans and disables tracing.
func (b *Bootstrapper) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.provider == nil {
		return nil
	}
	err := b.provider.Shutdown(ctx)
	b.reset()
	return err
}
