package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const contextKey = "console_session"

// CookieConfig controls the session cookie attributes.
type CookieConfig struct {
	Name   string
	Secure bool
	Domain string
}

// Manager ties a Store to the browser via a signed cookie.
type Manager struct {
	store  Store
	codec  *CookieCodec
	cookie CookieConfig
	ttl    time.Duration
	logger zerolog.Logger
}

func NewManager(store Store, codec *CookieCodec, cookie CookieConfig, ttl time.Duration, logger zerolog.Logger) *Manager {
	if cookie.Name == "" {
		cookie.Name = "hospital_console_session"
	}
	return &Manager{store: store, codec: codec, cookie: cookie, ttl: ttl, logger: logger}
}

// Load returns the session referenced by the request cookie, or a fresh
// unsaved session when there is none or it cannot be used.
func (m *Manager) Load(c echo.Context) *Session {
	ck, err := c.Cookie(m.cookie.Name)
	if err != nil || ck.Value == "" {
		return New(m.ttl)
	}
	id, err := m.codec.Decode(ck.Value)
	if err != nil {
		m.logger.Warn().Str("remote_ip", c.RealIP()).Msg("rejected session cookie")
		return New(m.ttl)
	}
	sess, err := m.store.Get(c.Request().Context(), id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.Error().Err(err).Msg("load session")
		}
		return New(m.ttl)
	}
	return sess
}

// Save persists s, extends its lifetime and (re)issues the cookie.
func (m *Manager) Save(c echo.Context, s *Session) error {
	now := time.Now().UTC()
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(m.ttl)
	if err := m.store.Save(c.Request().Context(), s); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	c.SetCookie(&http.Cookie{
		Name:     m.cookie.Name,
		Value:    m.codec.Encode(s.ID),
		Path:     "/",
		Domain:   m.cookie.Domain,
		MaxAge:   int(m.ttl.Seconds()),
		Secure:   m.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Renew saves s under a new ID, reissues the cookie and removes the record
// stored under the previous ID, which it returns. A cookie held before the
// call no longer loads s.
func (m *Manager) Renew(c echo.Context, s *Session) (string, error) {
	old := s.Rotate()
	if err := m.Save(c, s); err != nil {
		s.ID = old
		return "", err
	}
	if err := m.store.Delete(c.Request().Context(), old); err != nil {
		return old, fmt.Errorf("delete previous session: %w", err)
	}
	return old, nil
}

// Destroy removes s from the store and expires the cookie.
func (m *Manager) Destroy(c echo.Context, s *Session) error {
	if err := m.store.Delete(c.Request().Context(), s.ID); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	c.SetCookie(&http.Cookie{
		Name:     m.cookie.Name,
		Value:    "",
		Path:     "/",
		Domain:   m.cookie.Domain,
		MaxAge:   -1,
		Secure:   m.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Sweep deletes expired sessions from the store.
func (m *Manager) Sweep(ctx context.Context) {
	n, err := m.store.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		m.logger.Error().Err(err).Msg("sweep expired sessions")
		return
	}
	if n > 0 {
		m.logger.Debug().Int("deleted", n).Msg("swept expired sessions")
	}
}

// Middleware attaches the request's session to the echo context.
func (m *Manager) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(contextKey, m.Load(c))
			return next(c)
		}
	}
}

// FromContext returns the session attached by Middleware. It never returns
// nil; a request without middleware gets an empty session.
func FromContext(c echo.Context) *Session {
	if s, ok := c.Get(contextKey).(*Session); ok && s != nil {
		return s
	}
	s := &Session{}
	c.Set(contextKey, s)
	return s
}

// WithSession attaches s to c. Used by tests and by handlers that replace the
// session after login.
func WithSession(c echo.Context, s *Session) {
	c.Set(contextKey, s)
}

// RequireSlot rejects requests whose session has no live credential in any of
// the given slots.
func RequireSlot(slots ...Slot) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s := FromContext(c)
			now := time.Now()
			for _, slot := range slots {
				if s.Active(slot, now) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "login required")
		}
	}
}
