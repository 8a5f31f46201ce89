package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func validSettings() Settings {
	return Settings{
		PublicKey:      "pk-lf-1",
		SecretKey:      "sk-lf-1",
		BaseURL:        "http://langfuse-web:3000/",
		ServiceName:    "superpod-backend",
		ServiceVersion: "1.0.0",
	}
}

func TestSettingsEndpointAndAuth(t *testing.T) {
	s := validSettings()
	assert.Equal(t, "http://langfuse-web:3000/api/public/otel/v1/traces", s.Endpoint())
	// base64("pk-lf-1:sk-lf-1")
	assert.Equal(t, "Basic cGstbGYtMTpzay1sZi0x", s.AuthHeader())
}

func TestSettingsValidate(t *testing.T) {
	err := Settings{PublicKey: "pk"}.Validate()
	require.ErrorIs(t, err, ErrInvalidSettings)
	assert.Contains(t, err.Error(), "LANGFUSE_SECRET_KEY")
	assert.NotContains(t, err.Error(), "LANGFUSE_PUBLIC_KEY")
	assert.NoError(t, validSettings().Validate())
}

func TestLoadSettingsFromEnv(t *testing.T) {
	t.Setenv("LANGFUSE_PUBLIC_KEY", "pk")
	t.Setenv("LANGFUSE_SECRET_KEY", "sk")
	s, err := LoadSettings(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "pk", s.PublicKey)
	assert.Equal(t, "http://langfuse-web:3000", s.BaseURL)
	assert.Equal(t, "superpod-backend", s.ServiceName)
	assert.Equal(t, "1.0.0", s.ServiceVersion)
}

func memoryFactory(exp *tracetest.InMemoryExporter, calls *int) ExporterFactory {
	return func(context.Context, Settings) (sdktrace.SpanExporter, error) {
		*calls++
		return exp, nil
	}
}

func TestInitIsIdempotent(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	calls := 0
	b := NewBootstrapper(nil, func() (Settings, error) { return validSettings(), nil }, memoryFactory(exp, &calls))
	defer b.Shutdown(context.Background())

	assert.True(t, b.Init(context.Background(), false))
	assert.True(t, b.Init(context.Background(), false))
	assert.Equal(t, 1, calls)
	assert.True(t, b.Enabled())

	assert.True(t, b.Init(context.Background(), true))
	assert.Equal(t, 2, calls)
}

func TestInitWithoutCredentialsDisables(t *testing.T) {
	calls := 0
	b := NewBootstrapper(nil, func() (Settings, error) {
		return Settings{}, Settings{}.Validate()
	}, memoryFactory(tracetest.NewInMemoryExporter(), &calls))

	assert.False(t, b.Init(context.Background(), false))
	assert.False(t, b.Enabled())
	assert.Zero(t, calls)
}

func TestInitExporterFailureResetsState(t *testing.T) {
	b := NewBootstrapper(nil, func() (Settings, error) { return validSettings(), nil },
		func(context.Context, Settings) (sdktrace.SpanExporter, error) { return nil, errors.New("dial refused") })

	assert.False(t, b.Init(context.Background(), false))
	assert.False(t, b.Enabled())
	assert.Nil(t, b.Provider())
}

func TestInitRecoversFromPanics(t *testing.T) {
	b := NewBootstrapper(nil, func() (Settings, error) { panic("bad env") }, nil)
	assert.False(t, b.Init(context.Background(), false))
	assert.False(t, b.Enabled())
}

func TestSpansReachExporter(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	calls := 0
	b := NewBootstrapper(nil, func() (Settings, error) { return validSettings(), nil }, memoryFactory(exp, &calls))
	require.True(t, b.Init(context.Background(), false))

	_, span := otel.Tracer("superpod/test").Start(context.Background(), "agent.run")
	span.End()
	// the in-memory exporter drops its spans on shutdown, so flush first
	require.NoError(t, b.Provider().ForceFlush(context.Background()))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "agent.run", spans[0].Name)

	require.NoError(t, b.Shutdown(context.Background()))
	assert.False(t, b.Enabled())
}

func TestOTLPExporterSendsAuthorizedRequests(t *testing.T) {
	var (
		mu      sync.Mutex
		path    string
		authHdr string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		path, authHdr = r.URL.Path, r.Header.Get("Authorization")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := validSettings()
	s.BaseURL = srv.URL
	b := NewBootstrapper(nil, func() (Settings, error) { return s, nil }, nil)
	require.True(t, b.Init(context.Background(), false))

	_, span := otel.Tracer("superpod/test").Start(context.Background(), "workflow.run")
	span.End()
	require.NoError(t, b.Shutdown(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/api/public/otel/v1/traces", path)
	assert.Equal(t, s.AuthHeader(), authHdr)
}
