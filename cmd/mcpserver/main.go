// Command mcpserver wires the plugin host, kernel, middleware pipeline,
// orchestrator, and transports into a runnable MCP server. It registers
// no sample plugins: production deployments import this package's
// pieces and register their own.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"goa.design/clue/log"

	"github.com/guahanweb/mcp-server-platform/kernel"
	"github.com/guahanweb/mcp-server-platform/middleware"
	"github.com/guahanweb/mcp-server-platform/orchestrator"
	"github.com/guahanweb/mcp-server-platform/plugin"
	"github.com/guahanweb/mcp-server-platform/session"
	"github.com/guahanweb/mcp-server-platform/telemetry"
	"github.com/guahanweb/mcp-server-platform/transport"
)

func main() {
	var (
		transportMode = flag.String("transport", "http", `transport to serve: "http" (with /ws mounted) or "stdio"`)
		httpAddr      = flag.String("http-addr", ":8080", "HTTP listen address")
		wsMaxConns    = flag.Int("ws-max-conns", 1000, "maximum concurrent WebSocket connections")
		rateMaxCalls  = flag.Int("rate-max-calls", 60, "max tool calls allowed per window per tool")
		rateWindowMs  = flag.Int("rate-window-ms", 60000, "rate limit window, in milliseconds")
		debug         = flag.Bool("debug", false, "enable debug-level logging")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *transportMode == "stdio" {
		// Stdout carries JSON-RPC frames; diagnostics go to stderr.
		ctx = log.Context(ctx, log.WithOutput(os.Stderr))
	}
	if *debug {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := telemetry.NewClueLogger()
	tracer := telemetry.NewClueTracer()
	metrics := telemetry.NewClueMetrics()

	host := plugin.NewHost(logger)
	validator := plugin.NewSchemaValidator()

	store := session.NewInMemoryStore()
	orch := orchestrator.New(store, logger)
	// Workflows are registered by the deployment (e.g. orch.Workflows.Register(...))
	// before Serve is called; none are built in here.

	limiter := middleware.NewRateLimiter(*rateMaxCalls, *rateWindowMs)
	k := kernel.New(host,
		kernel.WithValidator(validator),
		kernel.WithLogger(logger),
		kernel.WithTracer(tracer),
		kernel.WithMetrics(metrics),
		kernel.WithOrchestrator(orchestrator.KernelAdapter{Orchestrator: orch}),
		kernel.WithMiddleware(
			middleware.Logging(logger, tracer),
			middleware.RequireArguments(),
			limiter.RateLimit(),
		),
	)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	if *transportMode == "stdio" {
		stdioSrv := transport.NewStdioServer(k, logger)
		go func() {
			<-sigc
			cancel()
		}()
		if err := stdioSrv.Serve(ctx, os.Stdin, os.Stdout); err != nil && err != context.Canceled {
			log.Printf(ctx, "stdio server error: %v", err)
		}
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelShutdown()
		host.Shutdown(shutdownCtx)
		return
	}

	var wg sync.WaitGroup
	errc := make(chan error, 2)

	httpCfg := transport.DefaultHTTPServerConfig(*httpAddr)
	httpSrv := transport.NewHTTPServer(httpCfg, k, logger, func(ctx context.Context) error {
		if status := orch.HealthCheck(ctx); !status.Healthy {
			return errors.New("orchestrator unhealthy")
		}
		return nil
	})

	wsSrv := transport.NewWebSocketServer(k, logger, *wsMaxConns)
	httpSrv.Mount("/ws", wsSrv)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpSrv.Serve(ctx); err != nil {
			errc <- err
		}
	}()

	select {
	case sig := <-sigc:
		log.Printf(ctx, "received signal %v, shutting down", sig)
	case err := <-errc:
		log.Printf(ctx, "server error: %v", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	wsSrv.Shutdown(shutdownCtx)
	host.Shutdown(shutdownCtx)

	// Stop the HTTP server's Serve loop, which is waiting on ctx.Done().
	cancel()
	wg.Wait()
}
