package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guahanweb/mcp-server-platform/jsonrpc"
	"github.com/guahanweb/mcp-server-platform/kernel"
)

func TestHTTPServerHandlesMCPEndpoint(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{}
	cfg := DefaultHTTPServerConfig(":0")
	srv := NewHTTPServer(cfg, d, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp jsonrpc.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Error)
}

func TestHTTPServerHealthEndpointDefaultsHealthy(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{}
	srv := NewHTTPServer(DefaultHTTPServerConfig(":0"), d, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTPServerHealthEndpointReportsUnhealthy(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{}
	srv := NewHTTPServer(DefaultHTTPServerConfig(":0"), d, nil, func(context.Context) error {
		return assert.AnError
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHTTPServerHarvestsRequestContextFromHeaders(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{}
	cfg := DefaultHTTPServerConfig(":0")
	srv := NewHTTPServer(cfg, d, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	req.Header.Set("x-session-id", "sess-1")
	req.Header.Set("x-user-id", "user-1")
	req.Header.Set("x-workflow-id", "wf-1")
	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	rc, ok := kernel.RequestContextFromContext(d.lastCtx)
	require.True(t, ok)
	assert.Equal(t, "sess-1", rc.SessionID)
	assert.Equal(t, "user-1", rc.UserID)
	assert.Equal(t, "wf-1", rc.CurrentWorkflow)
}

func TestHTTPServerCORSPreflight(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{}
	cfg := DefaultHTTPServerConfig(":0")
	cfg.CORS = CORSConfig{AllowedOrigins: []string{"https://example.com"}}
	srv := NewHTTPServer(cfg, d, nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
