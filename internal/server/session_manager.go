package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// UserIDHeader names the HTTP header that identifies the calendar owner.
const UserIDHeader = "X-User-ID"

// ErrNoUserIdentity is returned when a request carries neither a user
// header nor a bearer token.
var ErrNoUserIdentity = errors.New("no user identity in request")

type sessionInfo struct {
	userID     string
	lastAccess time.Time
}

// SessionIDManager maps HTTP requests to calendar users so each user gets
// their own MCP session on a shared server.
type SessionIDManager struct {
	sessions       map[string]*sessionInfo
	mu             sync.RWMutex
	cleanupTicker  *time.Ticker
	cleanupDone    chan struct{}
	stopOnce       sync.Once
	sessionTimeout time.Duration
	logger         *slog.Logger
}

// NewSessionIDManager creates a manager with a 24h idle timeout.
func NewSessionIDManager() *SessionIDManager {
	return NewSessionIDManagerWithLogger(24*time.Hour, slog.Default())
}

// NewSessionIDManagerWithLogger creates a manager with a custom timeout.
func NewSessionIDManagerWithLogger(timeout time.Duration, logger *slog.Logger) *SessionIDManager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &SessionIDManager{
		sessions:       make(map[string]*sessionInfo),
		cleanupTicker:  time.NewTicker(10 * time.Minute),
		cleanupDone:    make(chan struct{}),
		sessionTimeout: timeout,
		logger:         logger,
	}
	go m.cleanupExpiredSessions()
	return m
}

// ResolveUserID returns the user for an HTTP request. The X-User-ID header
// wins; otherwise a stable id is derived from the bearer token.
func (m *SessionIDManager) ResolveUserID(r *http.Request) (string, error) {
	if id := strings.TrimSpace(r.Header.Get(UserIDHeader)); id != "" {
		return id, nil
	}
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", ErrNoUserIdentity
	}
	return "token:" + hashToken(token)[:16], nil
}

// ResolveSessionID resolves a stable session id for an HTTP request.
func (m *SessionIDManager) ResolveSessionID(r *http.Request) (string, error) {
	userID, err := m.ResolveUserID(r)
	if err != nil {
		return "", err
	}
	sessionID := hashToken(userID)
	m.touch(sessionID, userID)
	return sessionID, nil
}

// HTTPContextFunc injects the resolved user into the request context. It is
// passed to the streamable HTTP transport.
func (m *SessionIDManager) HTTPContextFunc(ctx context.Context, r *http.Request) context.Context {
	userID, err := m.ResolveUserID(r)
	if err != nil {
		return ctx
	}
	m.touch(hashToken(userID), userID)
	return WithUserID(ctx, userID)
}

// UserForSession returns the user associated with a session id.
func (m *SessionIDManager) UserForSession(sessionID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if info, ok := m.sessions[sessionID]; ok {
		info.lastAccess = time.Now()
		return info.userID, true
	}
	return "", false
}

// RemoveSession removes a session.
func (m *SessionIDManager) RemoveSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// ListSessions returns all active session ids.
func (m *SessionIDManager) ListSessions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sessions := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		sessions = append(sessions, id)
	}
	return sessions
}

// Stop stops the cleanup goroutine.
func (m *SessionIDManager) Stop() {
	m.stopOnce.Do(func() {
		m.cleanupTicker.Stop()
		close(m.cleanupDone)
	})
}

func (m *SessionIDManager) touch(sessionID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = &sessionInfo{userID: userID, lastAccess: time.Now()}
}

func (m *SessionIDManager) expire(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	expired := 0
	for id, info := range m.sessions {
		if now.Sub(info.lastAccess) > m.sessionTimeout {
			delete(m.sessions, id)
			expired++
		}
	}
	return expired
}

func (m *SessionIDManager) cleanupExpiredSessions() {
	for {
		select {
		case <-m.cleanupTicker.C:
			if n := m.expire(time.Now()); n > 0 {
				m.logger.Info("cleaned up expired sessions", "count", n)
			}
		case <-m.cleanupDone:
			return
		}
	}
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
