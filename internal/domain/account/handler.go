package account

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/aioc/hospital-console/internal/platform/metrics"
	"github.com/aioc/hospital-console/internal/platform/session"
	"github.com/aioc/hospital-console/internal/platform/upstream"
)

// Sessions persists the session after a slot changes.
type Sessions interface {
	Save(c echo.Context, s *session.Session) error
	Renew(c echo.Context, s *session.Session) (string, error)
	Destroy(c echo.Context, s *session.Session) error
}

// ViewReleaser tracks per-session state held elsewhere: it follows the
// session to a new ID on login and is forgotten once the session is gone.
type ViewReleaser interface {
	Rename(oldID, newID string)
	Drop(id string)
}

type SlotInfo struct {
	Username  string     `json:"username"`
	FullName  string     `json:"full_name,omitempty"`
	Role      string     `json:"role"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// SessionInfo reports which slots hold a live credential. A nil slot is
// signed out.
type SessionInfo struct {
	Staff *SlotInfo `json:"staff"`
	Admin *SlotInfo `json:"admin"`
}

func slotInfo(s *session.Session, slot session.Slot, now time.Time) *SlotInfo {
	if !s.Active(slot, now) {
		return nil
	}
	c := s.Credential(slot)
	info := &SlotInfo{Username: c.Username, FullName: c.FullName, Role: c.Role}
	if !c.ExpiresAt.IsZero() {
		exp := c.ExpiresAt
		info.ExpiresAt = &exp
	}
	return info
}

func Describe(s *session.Session, now time.Time) SessionInfo {
	return SessionInfo{
		Staff: slotInfo(s, session.SlotStaff, now),
		Admin: slotInfo(s, session.SlotAdmin, now),
	}
}

type Handler struct {
	auth     Authenticator
	tokens   *session.TokenInspector
	sessions Sessions
	views    ViewReleaser
	logger   zerolog.Logger
}

func NewHandler(auth Authenticator, tokens *session.TokenInspector, sessions Sessions, views ViewReleaser, logger zerolog.Logger) *Handler {
	return &Handler{auth: auth, tokens: tokens, sessions: sessions, views: views, logger: logger}
}

// RegisterRoutes mounts the account endpoints. loginMW guards only the two
// credential endpoints.
func (h *Handler) RegisterRoutes(api *echo.Group, loginMW ...echo.MiddlewareFunc) {
	api.POST("/auth/login", h.LoginStaff, loginMW...)
	api.POST("/auth/admin/login", h.LoginAdmin, loginMW...)
	api.POST("/auth/logout", h.Logout)
	api.GET("/session", h.GetSession)
	api.GET("/me", h.Me, session.RequireSlot(session.SlotStaff))
	api.GET("/admin/me", h.AdminMe, session.RequireSlot(session.SlotAdmin))
}

func (h *Handler) LoginStaff(c echo.Context) error {
	return h.login(c, session.SlotStaff)
}

func (h *Handler) LoginAdmin(c echo.Context) error {
	return h.login(c, session.SlotAdmin)
}

func (h *Handler) login(c echo.Context, slot session.Slot) error {
	var in LoginRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	tok, err := h.auth.Login(c.Request().Context(), slot, in.Username, in.Password)
	if err != nil {
		outcome := "error"
		if errors.Is(err, upstream.ErrUnauthorized) || errors.Is(err, upstream.ErrForbidden) {
			outcome = "rejected"
		}
		metrics.RecordLogin(string(slot), outcome)
		h.logger.Info().Err(err).Str("slot", string(slot)).Str("username", in.Username).
			Str("remote_ip", c.RealIP()).Msg("login failed")
		return upstream.HTTPError(err)
	}

	fullName := ""
	if tok.FullName != nil {
		fullName = *tok.FullName
	}
	cred, err := h.tokens.Credential(tok.AccessToken, tok.Username, fullName, tok.Role)
	if err != nil {
		metrics.RecordLogin(string(slot), "error")
		h.logger.Error().Err(err).Str("slot", string(slot)).Msg("unusable access token from login service")
		return echo.NewHTTPError(http.StatusBadGateway, "login service returned an unusable token").SetInternal(err)
	}

	// Every login moves the session to a new ID so a cookie issued before
	// authentication never carries the new credential.
	sess := session.FromContext(c)
	sess.Set(slot, cred)
	oldID, err := h.sessions.Renew(c, sess)
	if err != nil {
		metrics.RecordLogin(string(slot), "error")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not store session").SetInternal(err)
	}
	if h.views != nil {
		h.views.Rename(oldID, sess.ID)
	}

	metrics.RecordLogin(string(slot), "ok")
	h.logger.Info().Str("slot", string(slot)).Str("username", cred.Username).Msg("login")
	return c.JSON(http.StatusOK, Describe(sess, time.Now()))
}

// Logout clears the slot named by ?role=user|admin. The session itself is
// destroyed once neither slot is signed in.
func (h *Handler) Logout(c echo.Context) error {
	slot, ok := session.ParseSlot(c.QueryParam("role"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "role must be user or admin")
	}
	sess := session.FromContext(c)
	if err := h.release(c, sess, slot); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not update session").SetInternal(err)
	}
	h.logger.Info().Str("slot", string(slot)).Msg("logout")
	return c.JSON(http.StatusOK, Describe(sess, time.Now()))
}

func (h *Handler) release(c echo.Context, sess *session.Session, slot session.Slot) error {
	sess.Clear(slot)
	if !sess.Empty() {
		return h.sessions.Save(c, sess)
	}
	if h.views != nil {
		h.views.Drop(sess.ID)
	}
	return h.sessions.Destroy(c, sess)
}

func (h *Handler) GetSession(c echo.Context) error {
	return c.JSON(http.StatusOK, Describe(session.FromContext(c), time.Now()))
}

func (h *Handler) Me(c echo.Context) error {
	return h.me(c, session.SlotStaff)
}

func (h *Handler) AdminMe(c echo.Context) error {
	return h.me(c, session.SlotAdmin)
}

// me proxies the dashboard endpoint. A token the login service no longer
// accepts is dropped from the session.
func (h *Handler) me(c echo.Context, slot session.Slot) error {
	sess := session.FromContext(c)
	info, err := h.auth.Me(c.Request().Context(), sess, slot)
	if err != nil {
		if errors.Is(err, upstream.ErrUnauthorized) {
			if rerr := h.release(c, sess, slot); rerr != nil {
				h.logger.Error().Err(rerr).Msg("release rejected credential")
			}
		}
		return upstream.HTTPError(err)
	}
	return c.JSON(http.StatusOK, info)
}
