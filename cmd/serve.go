package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calendaragent/internal/logging"
	"github.com/teemow/calendaragent/internal/orchestrator"
	"github.com/teemow/calendaragent/internal/resources"
	"github.com/teemow/calendaragent/internal/server"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

type serveOptions struct {
	transport string
	httpAddr  string
	user      string
	metrics   MetricsConfig
	noChat    bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing the calendar,
summary and preference operations, plus assistant_chat when an LLM API key is
configured.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport

User identity:
  stdio: --user flag or CALENDARAGENT_USER env var (default: "default")
  streamable-http: X-User-ID header, or a stable id derived from the bearer token

The HTTP transport also serves /healthz and /readyz. Prometheus metrics are
served on a dedicated port (--metrics-addr). Cancelled events are purged on
the cron schedule from the config (cleanup.schedule).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.metrics.Addr == "" || opts.metrics.Addr == server.DefaultMetricsAddr {
				if addr := os.Getenv("METRICS_ADDR"); addr != "" {
					opts.metrics.Addr = addr
				}
			}
			if v := os.Getenv("METRICS_ENABLED"); v == "false" {
				opts.metrics.Enabled = false
			}
			return runServe(opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", "stdio", "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&opts.httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().StringVar(&opts.user, "user", "", "Calendar owner for the stdio transport. Can also use CALENDARAGENT_USER env var.")
	cmd.Flags().BoolVar(&opts.noChat, "no-chat", false, "Do not expose assistant_chat even when an LLM API key is configured")

	// Metrics server flags
	cmd.Flags().BoolVar(&opts.metrics.Enabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&opts.metrics.Addr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(opts serveOptions) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// stdout carries the stdio protocol; logs go to stderr
	a, err := newApp(shutdownCtx, os.Stderr)
	if err != nil {
		return err
	}
	defer a.close()

	mcpSrv := mcpserver.NewMCPServer("calendaragent", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
	)
	if err := registerAllTools(mcpSrv, a, opts.noChat); err != nil {
		return err
	}

	scheduler, err := startCleanupSchedule(shutdownCtx, a)
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer func() { <-scheduler.Stop().Done() }()
	}

	switch opts.transport {
	case "stdio":
		return runStdioServer(mcpSrv, resolveUser(opts.user))
	case "streamable-http":
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, a, opts)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", opts.transport)
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer, userID string) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv,
			mcpserver.WithStdioContextFunc(func(ctx context.Context) context.Context {
				return server.WithUserID(ctx, userID)
			}),
		); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func registerAllTools(mcpSrv *mcpserver.MCPServer, a *app, noChat bool) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Calendar",
			register: func() error {
				return orchestrator.RegisterOperations(mcpSrv, a.sc)
			},
		},
		{
			name: "Resources",
			register: func() error {
				return resources.RegisterUserResources(mcpSrv, a.sc)
			},
		},
	}
	if a.llm != nil && !noChat {
		registrations = append(registrations, toolRegistration{
			name: "Assistant",
			register: func() error {
				o, sessions, err := a.newOrchestrator()
				if err != nil {
					return err
				}
				a.closers = append(a.closers, func() error {
					sessions.Close()
					return nil
				})
				return orchestrator.RegisterChatTools(mcpSrv, a.sc, o)
			},
		})
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s: %w", reg.name, err)
		}
	}

	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, a *app, opts serveOptions) error {
	sessions := server.NewSessionIDManagerWithLogger(24*time.Hour, a.logger)
	defer sessions.Stop()

	healthChecker := server.NewHealthChecker(a.sc)
	if a.db != nil {
		healthChecker.AddCheck("database", a.db.PingContext)
	}

	httpServer := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath("/mcp"),
		mcpserver.WithHTTPContextFunc(sessions.HTTPContextFunc),
	)

	mux := http.NewServeMux()
	mux.Handle("/mcp", server.InstrumentHandler(requireUser(sessions, httpServer), a.sc.Metrics()))
	healthChecker.RegisterHealthEndpoints(mux)

	srv := &http.Server{
		Addr:              opts.httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting MCP server",
			slog.String("transport", opts.transport),
			slog.String("addr", opts.httpAddr),
			slog.String("endpoint", "/mcp"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
		return nil
	})

	var metricsServer *server.MetricsServer
	if opts.metrics.Enabled && a.provider.Enabled() && a.provider.PrometheusHandler() != nil {
		var err error
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    opts.metrics.Addr,
			InstrumentationProvider: a.provider,
			Health:                  healthChecker,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		g.Go(func() error {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server stopped with error: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		healthChecker.SetReady(false)
		a.logger.Info("shutdown signal received, stopping servers")

		stopCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		var errs []error
		if err := srv.Shutdown(stopCtx); err != nil {
			errs = append(errs, fmt.Errorf("error shutting down HTTP server: %w", err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(stopCtx); err != nil {
				errs = append(errs, fmt.Errorf("error shutting down metrics server: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		a.logger.Error("server stopped", logging.Err(err))
		return err
	}
	a.logger.Info("servers gracefully stopped")
	return nil
}

// requireUser rejects MCP requests that carry no user identity.
func requireUser(sessions *server.SessionIDManager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := sessions.ResolveUserID(r); err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="calendaragent"`)
			http.Error(w, fmt.Sprintf("unauthorized: %v (send %s or a bearer token)", err, server.UserIDHeader), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// parseCommaSeparatedList parses a comma-separated string into a slice of
// trimmed, non-empty values.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
