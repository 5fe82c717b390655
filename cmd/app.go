package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/teemow/calendaragent/internal/agent"
	"github.com/teemow/calendaragent/internal/calendar"
	"github.com/teemow/calendaragent/internal/config"
	"github.com/teemow/calendaragent/internal/conversation"
	"github.com/teemow/calendaragent/internal/instrumentation"
	"github.com/teemow/calendaragent/internal/llm"
	"github.com/teemow/calendaragent/internal/logging"
	"github.com/teemow/calendaragent/internal/orchestrator"
	"github.com/teemow/calendaragent/internal/preferences"
	"github.com/teemow/calendaragent/internal/router"
	"github.com/teemow/calendaragent/internal/server"
	"github.com/teemow/calendaragent/internal/tools/common"
)

// app holds the dependencies shared by the commands. Everything is built
// here and injected; nothing is a package-level singleton.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	sc       *server.ServerContext
	db       *sql.DB
	provider *instrumentation.Provider
	instr    instrumentation.Config
	llm      llm.Client
	closers  []func() error
}

// newApp loads configuration and opens the stores. logOut receives log
// output; the stdio transport and the chat REPL keep stdout clean.
func newApp(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if debugMode {
		cfg.Log.Level = "debug"
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, logOut)
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	a.instr = instrumentation.DefaultConfig()
	a.instr.ServiceVersion = version
	a.provider, err = instrumentation.NewProvider(ctx, a.instr)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	a.closers = append(a.closers, func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.provider.Shutdown(shutdownCtx)
	})
	metrics := a.provider.Metrics()

	var embedder preferences.Embedder = preferences.NewHashEmbedder()
	if cfg.LLM.APIKey != "" {
		client, err := llm.NewGeminiClient(ctx, cfg.LLM.APIKey)
		if err != nil {
			a.close()
			return nil, err
		}
		var c llm.Client = llm.WithInstrumentation(llm.NewGemini(client, cfg.LLM.Model, cfg.LLM.Temperature), cfg.LLM.Model, metrics)
		c = llm.WithRetry(c, llm.RetryPolicy{
			MaxTries:        cfg.LLM.MaxRetries,
			InitialInterval: time.Second,
			MaxInterval:     20 * time.Second,
			MaxElapsedTime:  cfg.LLM.RetryMaxElapsed,
		}, metrics, logger)
		if cfg.LLM.MinInterval > 0 {
			c = llm.WithPacing(c, cfg.LLM.MinInterval)
		}
		a.llm = c
		embedder = preferences.NewGenAIEmbedder(client, cfg.LLM.EmbeddingModel)
	}

	var (
		store calendar.Store
		repo  preferences.Repository
	)
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		store = calendar.NewMemoryStore()
		repo = preferences.NewMemoryRepository()
	default:
		sqliteStore, err := calendar.OpenSQLite(cfg.Storage.Path, loc)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to open calendar database: %w", err)
		}
		a.db = sqliteStore.DB()
		a.closers = append(a.closers, sqliteStore.Close)
		repo, err = preferences.NewSQLiteRepository(a.db, loc)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to open preference store: %w", err)
		}
		store = sqliteStore
		logger.Debug("opened database", slog.String("path", cfg.Storage.Path))
	}

	engine := calendar.NewEngine(store, calendar.WithLogger(logger))
	prefs := preferences.NewStore(repo, embedder, logger)

	a.sc = server.NewServerContext(ctx, engine, prefs,
		server.WithLogger(logger),
		server.WithLocation(loc),
		server.WithWorkHours(cfg.Calendar.WorkStartHour, cfg.Calendar.WorkEndHour),
		server.WithInstrumentation(metrics, instrumentation.NewAuditLoggerWithConfig(logger, a.instr.AuditLogging)),
	)
	a.closers = append(a.closers, a.sc.Shutdown)
	return a, nil
}

// newOrchestrator wires the router, the agents and the session store.
func (a *app) newOrchestrator() (*orchestrator.Orchestrator, *conversation.Manager, error) {
	if a.llm == nil {
		return nil, nil, fmt.Errorf("no LLM API key configured: set CALENDARAGENT_API_KEY or GEMINI_API_KEY")
	}
	metrics := a.sc.Metrics()

	agents, err := orchestrator.NewAgents(a.sc, a.llm,
		agent.WithMaxIterations(a.cfg.Agent.MaxIterations),
		agent.WithLogger(a.logger),
		agent.WithMetrics(metrics))
	if err != nil {
		return nil, nil, err
	}
	sessions := conversation.NewManager(a.cfg.Agent.SessionTTL, 0,
		conversation.WithMetrics(metrics),
		conversation.WithLogger(a.logger))
	r := router.New(a.llm, router.WithLogger(a.logger), router.WithMetrics(metrics))

	o := orchestrator.New(r, agents, sessions, a.sc,
		orchestrator.WithHistoryLimit(a.cfg.Agent.HistoryLimit),
		orchestrator.WithLogger(a.logger))
	return o, sessions, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("shutdown step failed", logging.Err(err))
		}
	}
	a.closers = nil
}

// resolveUser picks the calendar owner for local commands.
func resolveUser(flag string) string {
	if flag != "" {
		return flag
	}
	if u := os.Getenv("CALENDARAGENT_USER"); u != "" {
		return u
	}
	return common.DefaultUserID
}
