package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teemow/calendaragent/internal/calendar"
	"github.com/teemow/calendaragent/internal/instrumentation"
	"github.com/teemow/calendaragent/internal/preferences"
)

// ServerContext holds the dependencies shared by every operation handler.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	engine      *calendar.Engine
	preferences *preferences.Store

	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	logger      *slog.Logger

	location      *time.Location
	now           func() time.Time
	workStartHour int
	workEndHour   int

	mu       sync.RWMutex
	shutdown bool
}

// Option configures a ServerContext.
type Option func(*ServerContext)

// WithInstrumentation sets the metrics recorder and audit logger.
func WithInstrumentation(metrics *instrumentation.Metrics, audit *instrumentation.AuditLogger) Option {
	return func(sc *ServerContext) {
		sc.metrics = metrics
		sc.auditLogger = audit
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(sc *ServerContext) {
		if logger != nil {
			sc.logger = logger
		}
	}
}

// WithLocation sets the zone used to interpret times without an offset.
func WithLocation(loc *time.Location) Option {
	return func(sc *ServerContext) {
		if loc != nil {
			sc.location = loc
		}
	}
}

// WithClock overrides the reference clock for relative times.
func WithClock(now func() time.Time) Option {
	return func(sc *ServerContext) {
		if now != nil {
			sc.now = now
		}
	}
}

// WithWorkHours sets the default working window for free-slot queries.
func WithWorkHours(start, end int) Option {
	return func(sc *ServerContext) {
		sc.workStartHour = start
		sc.workEndHour = end
	}
}

// NewServerContext creates a server context around the calendar engine and
// preference store.
func NewServerContext(ctx context.Context, engine *calendar.Engine, prefs *preferences.Store, opts ...Option) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:           shutdownCtx,
		cancel:        cancel,
		engine:        engine,
		preferences:   prefs,
		logger:        slog.Default(),
		location:      time.Local,
		now:           time.Now,
		workStartHour: calendar.DefaultWorkStartHour,
		workEndHour:   calendar.DefaultWorkEndHour,
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Context returns the server context.
func (sc *ServerContext) Context() context.Context { return sc.ctx }

// Engine returns the calendar engine.
func (sc *ServerContext) Engine() *calendar.Engine { return sc.engine }

// Preferences returns the preference store.
func (sc *ServerContext) Preferences() *preferences.Store { return sc.preferences }

// Metrics returns the metrics recorder, which may be nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics { return sc.metrics }

// AuditLogger returns the audit logger, which may be nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger { return sc.auditLogger }

// Logger returns the logger.
func (sc *ServerContext) Logger() *slog.Logger { return sc.logger }

// Location returns the default time zone.
func (sc *ServerContext) Location() *time.Location { return sc.location }

// Now returns the current time in Location.
func (sc *ServerContext) Now() time.Time { return sc.now().In(sc.location) }

// WorkHours returns the default working window.
func (sc *ServerContext) WorkHours() (start, end int) { return sc.workStartHour, sc.workEndHour }

// IsShutdown returns whether the server has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context. It is safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}
	sc.shutdown = true
	sc.cancel()
	return nil
}

type userIDKey struct{}

// WithUserID records the calling user in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the user recorded by WithUserID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}
