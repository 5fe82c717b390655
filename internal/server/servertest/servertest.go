// Package servertest builds in-memory server contexts for tests.
package servertest

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/teemow/calendaragent/internal/calendar"
	"github.com/teemow/calendaragent/internal/instrumentation"
	"github.com/teemow/calendaragent/internal/preferences"
	"github.com/teemow/calendaragent/internal/server"
)

// Now is the fixed clock used by New: Wednesday 2025-01-15 10:00 UTC.
var Now = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

// New returns a ServerContext backed by memory stores, a fixed clock and
// no-op instrumentation. Extra options are applied last.
func New(t testing.TB, opts ...server.Option) *server.ServerContext {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return Now }

	engine := calendar.NewEngine(calendar.NewMemoryStore(),
		calendar.WithLogger(logger),
		calendar.WithClock(clock))
	prefs := preferences.NewStore(preferences.NewMemoryRepository(), preferences.NewHashEmbedder(), logger)

	provider := instrumentation.NewNoopProvider()
	base := []server.Option{
		server.WithLogger(logger),
		server.WithLocation(time.UTC),
		server.WithClock(clock),
		server.WithInstrumentation(provider.Metrics(), instrumentation.NewAuditLogger(logger)),
	}

	sc := server.NewServerContext(context.Background(), engine, prefs, append(base, opts...)...)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}
