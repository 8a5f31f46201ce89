package http

import (
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pessini/superpod-blog/internal/adapter/llm"
	"github.com/pessini/superpod-blog/internal/agent"
	"github.com/pessini/superpod-blog/internal/catalog"
	"github.com/pessini/superpod-blog/internal/config"
	"github.com/pessini/superpod-blog/internal/repository"
	"github.com/pessini/superpod-blog/internal/service"
	"github.com/pessini/superpod-blog/internal/tools"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := repository.NewSQLiteStore(":memory:", repository.Tables{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := tools.NewRegistry()
	require.NoError(t, tools.RegisterBuiltins(reg, tools.Deps{Store: store}))
	cat, err := catalog.Build(agent.Deps{LLM: llm.NewMockClient(), Tools: reg, Store: store}, nil)
	require.NoError(t, err)
	svc := service.New(store, cat, &config.Config{OSID: "agentos-test"}, service.Options{})

	mcpStub := nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("X-Test", "mcp")
		w.WriteHeader(nethttp.StatusAccepted)
	})
	srv := httptest.NewServer(NewServer(svc, mcpStub, "test", nil))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string) (*nethttp.Response, string) {
	t.Helper()
	resp, err := nethttp.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServerHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, body := get(t, srv, "/health")
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestServerDocs(t *testing.T) {
	srv := newTestServer(t)

	resp, body := get(t, srv, "/docs")
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "swagger-ui")

	resp, body = get(t, srv, "/openapi.json")
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	var doc struct {
		OpenAPI string                    `json:"openapi"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &doc))
	assert.Equal(t, "3.0.3", doc.OpenAPI)
	assert.Contains(t, doc.Paths, "/agents")
	assert.Contains(t, doc.Paths, "/workflows/{id}/runs")

	resp, body = get(t, srv, "/openapi.yaml")
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "openapi: 3.0.3")
}

func TestServerUnknownRouteIsJSON(t *testing.T) {
	srv := newTestServer(t)
	resp, body := get(t, srv, "/does-not-exist")
	assert.Equal(t, nethttp.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Not Found"}`, body)
}

func TestServerRunAgentByForm(t *testing.T) {
	srv := newTestServer(t)
	resp, err := nethttp.PostForm(srv.URL+"/agents/"+catalog.AgnoSimpleID+"/runs", url.Values{"message": {"ping"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Equal(t, nethttp.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), "[MOCK]")
	assert.Contains(t, string(body), `"status":"COMPLETED"`)
}

func TestServerMetricsAndMCP(t *testing.T) {
	srv := newTestServer(t)

	resp, body := get(t, srv, "/metrics")
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(body, "# HELP") || strings.Contains(body, "go_"))

	resp, err := nethttp.Post(srv.URL+"/mcp", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, nethttp.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "mcp", resp.Header.Get("X-Test"))
}
