package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"sweetalert/internal/config"
	"sweetalert/internal/permanent"

	"github.com/google/uuid"
)

type contextKey struct{}

// Manager binds sessions to requests through a cookie.
// Params: backend store, cookie settings, and logger.
// Returns: session lifecycle helper and HTTP middleware.
type Manager struct {
	store  Store
	cfg    config.SessionConfig
	logger *slog.Logger
	newID  func() string
}

// NewManager creates a session manager.
// Params: backend store, session settings, and logger.
// Returns: configured manager.
func NewManager(store Store, cfg config.SessionConfig, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		cfg:    cfg,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Start loads the request session or issues a new one.
// Params: context and inbound request carrying the session cookie.
// Returns: session; corrupt records are replaced by a fresh session, other store errors are returned.
func (m *Manager) Start(ctx context.Context, request *http.Request) (*Session, error) {
	cookie, err := request.Cookie(m.cfg.CookieName)
	if err != nil || !validID(cookie.Value) {
		return m.issue(), nil
	}

	record, err := m.store.Load(ctx, cookie.Value)
	switch {
	case err == nil:
		return newSession(cookie.Value, record, false), nil
	case errors.Is(err, ErrNotFound):
		return m.issue(), nil
	case permanent.Is(err):
		m.logger.Warn("discarding unreadable session", "error", err.Error())
		if delErr := m.store.Delete(ctx, cookie.Value); delErr != nil {
			m.logger.Warn("delete unreadable session failed", "error", delErr.Error())
		}
		return m.issue(), nil
	default:
		return nil, fmt.Errorf("load session: %w", err)
	}
}

// Save ends the flash cycle and writes the session back.
// Every non-empty session is rewritten, so backend expiry counts from the last request.
// Params: context and request session.
// Returns: store error.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	s.AgeFlashData()
	if s.Empty() {
		if s.Fresh() {
			return nil
		}
		if err := m.store.Delete(ctx, s.ID()); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		s.markStored()
		return nil
	}
	if err := m.store.Save(ctx, s.ID(), s.Record()); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.markStored()
	return nil
}

// Middleware attaches the session to the request context and saves it after next returns.
// Params: next handler.
// Returns: session-aware handler.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		ctx := request.Context()
		s, err := m.Start(ctx, request)
		if err != nil {
			m.logger.Error("session start failed", "path", request.URL.Path, "error", err.Error())
			writer.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		http.SetCookie(writer, m.cookie(s.ID()))
		next.ServeHTTP(writer, request.WithContext(NewContext(ctx, s)))

		if err := m.Save(ctx, s); err != nil {
			m.logger.Error("session save failed", "session", s.ID(), "error", err.Error())
		}
	})
}

func (m *Manager) issue() *Session {
	return newSession(m.newID(), Record{}, true)
}

func (m *Manager) cookie(id string) *http.Cookie {
	cookie := &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    id,
		Path:     m.cfg.CookiePath,
		HttpOnly: true,
		Secure:   m.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl := m.cfg.IdleTTL(); ttl > 0 {
		cookie.MaxAge = int(ttl / time.Second)
	}
	return cookie
}

func validID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

// NewContext stores the request session in ctx.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the request session stored by Middleware.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}
