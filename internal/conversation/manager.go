package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/teemow/calendaragent/internal/instrumentation"
	"github.com/teemow/calendaragent/internal/logging"
)

// Defaults for the session cache.
const (
	DefaultTTL             = 30 * time.Minute
	DefaultCleanupInterval = 10 * time.Minute
)

// Manager keeps one Session per user in a TTL cache. Idle sessions expire
// after the TTL; each access extends it.
type Manager struct {
	mu      sync.Mutex
	cache   *cache.Cache
	metrics *instrumentation.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMetrics sets the recorder for the active conversations gauge.
func WithMetrics(m *instrumentation.Metrics) ManagerOption {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(mgr *Manager) {
		if logger != nil {
			mgr.logger = logger
		}
	}
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) ManagerOption {
	return func(mgr *Manager) { mgr.now = now }
}

// NewManager creates a Manager. A ttl <= 0 uses DefaultTTL.
func NewManager(ttl, cleanupInterval time.Duration, opts ...ManagerOption) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	m := &Manager{
		cache:  cache.New(ttl, cleanupInterval),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.cache.OnEvicted(func(userID string, _ interface{}) {
		m.metrics.DecrementActiveConversations(context.Background())
		m.logger.Debug("conversation ended", logging.UserHash(userID))
	})
	return m
}

// Get returns the session of userID, creating it if needed.
func (m *Manager) Get(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.cache.Get(userID); ok {
		sess := v.(*Session)
		m.cache.Set(userID, sess, cache.DefaultExpiration)
		return sess
	}

	sess := newSession(userID, m.now)
	m.cache.Set(userID, sess, cache.DefaultExpiration)
	m.metrics.IncrementActiveConversations(context.Background())
	m.logger.Debug("conversation started", logging.UserHash(userID))
	return sess
}

// Peek returns the session of userID without creating or refreshing it.
func (m *Manager) Peek(userID string) (*Session, bool) {
	v, ok := m.cache.Get(userID)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Reset discards the session of userID. It reports whether one existed.
func (m *Manager) Reset(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cache.Get(userID); !ok {
		return false
	}
	m.cache.Delete(userID)
	return true
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	return m.cache.ItemCount()
}

// Close drops every session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID := range m.cache.Items() {
		m.cache.Delete(userID)
	}
}
