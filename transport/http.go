package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/guahanweb/mcp-server-platform/jsonrpc"
	"github.com/guahanweb/mcp-server-platform/kernel"
	"github.com/guahanweb/mcp-server-platform/plugin"
	"github.com/guahanweb/mcp-server-platform/telemetry"
)

// CORSConfig configures the HTTP transport's cross-origin handling.
// A zero-value CORSConfig disables CORS headers entirely.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

func (c CORSConfig) enabled() bool { return len(c.AllowedOrigins) > 0 }

func (c CORSConfig) originAllowed(origin string) (string, bool) {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return "*", true
		}
		if o == origin {
			return origin, true
		}
	}
	return "", false
}

// HTTPServerConfig configures an HTTPServer.
type HTTPServerConfig struct {
	Addr string

	// MaxBodyBytes caps a single request body; requests over the limit
	// are rejected before ever reaching the kernel.
	MaxBodyBytes int64

	ShutdownTimeout time.Duration

	// CORS configures cross-origin access to POST /mcp; the zero value
	// disables CORS handling.
	CORS CORSConfig

	// TrustProxy, when set, takes the peer address from X-Forwarded-For
	// instead of the raw connection's RemoteAddr.
	TrustProxy bool
}

// DefaultHTTPServerConfig returns sane defaults: a 1MiB body cap and a
// 30s graceful shutdown window.
func DefaultHTTPServerConfig(addr string) HTTPServerConfig {
	return HTTPServerConfig{Addr: addr, MaxBodyBytes: 1 << 20, ShutdownTimeout: 30 * time.Second}
}

// HTTPServer exposes the kernel over POST /mcp, plus GET /health for
// liveness/readiness probes, routed with chi.
type HTTPServer struct {
	cfg        HTTPServerConfig
	dispatcher Dispatcher
	logger     telemetry.Logger
	healthFunc func(ctx context.Context) error
	router     chi.Router
	srv        *http.Server
}

// Mount attaches h at pattern on the HTTP server's router, for
// deployments that serve the WebSocket transport (default path /ws)
// alongside POST /mcp on the same listener.
func (s *HTTPServer) Mount(pattern string, h http.Handler) {
	s.router.Handle(pattern, h)
}

// NewHTTPServer builds an HTTPServer. healthFunc may be nil, in which
// case /health always reports healthy.
func NewHTTPServer(cfg HTTPServerConfig, d Dispatcher, logger telemetry.Logger, healthFunc func(ctx context.Context) error) *HTTPServer {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	s := &HTTPServer{cfg: cfg, dispatcher: d, logger: logger, healthFunc: healthFunc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if cfg.CORS.enabled() {
		r.Use(s.cors)
	}
	r.Post("/mcp", s.handleMCP)
	r.Get("/health", s.handleHealth)
	s.router = r

	s.srv = &http.Server{Addr: cfg.Addr, Handler: r, ReadHeaderTimeout: 60 * time.Second}
	return s
}

// cors applies the configured CORSConfig to every response, including
// short-circuiting CORS preflight OPTIONS requests.
func (s *HTTPServer) cors(next http.Handler) http.Handler {
	cfg := s.cfg.CORS
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed, ok := cfg.originAllowed(origin); ok {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			if cfg.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", strings.Join(defaultIfEmpty(cfg.AllowedMethods, []string{"POST", "OPTIONS"}), ", "))
			w.Header().Set("Access-Control-Allow-Headers", strings.Join(defaultIfEmpty(cfg.AllowedHeaders, []string{"Content-Type", "x-session-id", "x-user-id", "x-workflow-id"}), ", "))
			if cfg.MaxAge > 0 {
				w.Header().Set("Access-Control-Max-Age", strconv.Itoa(int(cfg.MaxAge.Seconds())))
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func defaultIfEmpty(vals, fallback []string) []string {
	if len(vals) == 0 {
		return fallback
	}
	return vals
}

// harvestRequestContext builds a plugin.RequestContext from the
// x-session-id/x-user-id/x-workflow-id headers, plus user-agent and
// peer address in Metadata.
func (s *HTTPServer) harvestRequestContext(r *http.Request) plugin.RequestContext {
	peer := r.RemoteAddr
	if s.cfg.TrustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			peer = strings.TrimSpace(strings.Split(fwd, ",")[0])
		}
	}
	return plugin.RequestContext{
		SessionID:       r.Header.Get("x-session-id"),
		UserID:          r.Header.Get("x-user-id"),
		CurrentWorkflow: r.Header.Get("x-workflow-id"),
		Timestamp:       time.Now().UnixMilli(),
		Metadata: map[string]any{
			"userAgent": r.UserAgent(),
			"peer":      peer,
		},
	}
}

func (s *HTTPServer) handleMCP(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	raw, err := io.ReadAll(body)
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	ctx := kernel.WithRequestContext(r.Context(), s.harvestRequestContext(r))
	resp := HandleMessage(ctx, s.dispatcher, raw)
	w.Header().Set("Content-Type", "application/json")
	// Internal failures carry HTTP 500 alongside the JSON-RPC error
	// envelope; protocol-level errors stay 200 so clients keep parsing
	// the envelope.
	if resp.Error != nil && resp.Error.Code == jsonrpc.CodeInternalError {
		w.WriteHeader(http.StatusInternalServerError)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error(r.Context(), "http: failed to write response", "err", err)
	}
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.healthFunc != nil {
		if err := s.healthFunc(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	resp, err := json.Marshal(map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UnixMilli(),
		"transport": "http",
	})
	if err != nil {
		s.logger.Error(r.Context(), "http: failed to encode health response", "err", err)
		return
	}
	_, _ = w.Write(resp)
}

// Serve runs the HTTP server until ctx is canceled, then drains
// in-flight requests within ShutdownTimeout before returning.
func (s *HTTPServer) Serve(ctx context.Context) error {
	errc := make(chan error, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.logger.Info(ctx, "http server listening", "addr", s.cfg.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info(ctx, "http server shutting down", "addr", s.cfg.Addr)
	err := s.srv.Shutdown(shutdownCtx)
	wg.Wait()
	return err
}
