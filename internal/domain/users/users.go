// Package users is the admin-only user management page over the login
// service.
package users

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aioc/hospital-console/internal/platform/session"
	"github.com/aioc/hospital-console/internal/platform/upstream"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

type ManagedUser struct {
	ID       int     `json:"id"`
	Username string  `json:"username"`
	Role     Role    `json:"role"`
	IsActive bool    `json:"is_active"`
	FullName *string `json:"full_name"`
}

type UserCreate struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Role     Role    `json:"role"`
	FullName *string `json:"full_name,omitempty"`
}

type UserUpdate struct {
	FullName *string `json:"full_name,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
	Role     *Role   `json:"role,omitempty"`
}

type ListQuery struct {
	Search string
	Skip   int
	Limit  int
}

type Repository interface {
	List(ctx context.Context, sess *session.Session, q ListQuery) (*upstream.List[ManagedUser], error)
	Create(ctx context.Context, sess *session.Session, in *UserCreate) (*ManagedUser, error)
	Get(ctx context.Context, sess *session.Session, id int) (*ManagedUser, error)
	Update(ctx context.Context, sess *session.Session, id int, in *UserUpdate) (*ManagedUser, error)
	Deactivate(ctx context.Context, sess *session.Session, id int) error
	DeletePermanent(ctx context.Context, sess *session.Session, id int) error
}

// -- Login service client --

// Client implements Repository. Every call requires the admin slot.
type Client struct {
	api *upstream.Client
}

func NewClient(api *upstream.Client) *Client {
	return &Client{api: api}
}

func userPath(id int) string { return "/api/users/" + strconv.Itoa(id) }

func (c *Client) do(ctx context.Context, sess *session.Session, method, path string, q url.Values, body, out any) error {
	token, err := sess.Bearer(session.AdminOnly, time.Now())
	if err != nil {
		return err
	}
	return c.api.Do(ctx, method, path, q, token, body, out)
}

func (c *Client) List(ctx context.Context, sess *session.Session, lq ListQuery) (*upstream.List[ManagedUser], error) {
	q := url.Values{}
	if lq.Search != "" {
		q.Set("search", lq.Search)
	}
	if lq.Skip > 0 {
		q.Set("skip", strconv.Itoa(lq.Skip))
	}
	if lq.Limit > 0 {
		q.Set("limit", strconv.Itoa(lq.Limit))
	}
	var out upstream.List[ManagedUser]
	if err := c.do(ctx, sess, http.MethodGet, "/api/users", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return &out, nil
}

func (c *Client) Create(ctx context.Context, sess *session.Session, in *UserCreate) (*ManagedUser, error) {
	var out ManagedUser
	if err := c.do(ctx, sess, http.MethodPost, "/api/users", nil, in, &out); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &out, nil
}

func (c *Client) Get(ctx context.Context, sess *session.Session, id int) (*ManagedUser, error) {
	var out ManagedUser
	if err := c.do(ctx, sess, http.MethodGet, userPath(id), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &out, nil
}

func (c *Client) Update(ctx context.Context, sess *session.Session, id int, in *UserUpdate) (*ManagedUser, error) {
	var out ManagedUser
	if err := c.do(ctx, sess, http.MethodPut, userPath(id), nil, in, &out); err != nil {
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}
	return &out, nil
}

func (c *Client) Deactivate(ctx context.Context, sess *session.Session, id int) error {
	if err := c.do(ctx, sess, http.MethodDelete, userPath(id), nil, nil, nil); err != nil {
		return fmt.Errorf("deactivate user %d: %w", id, err)
	}
	return nil
}

func (c *Client) DeletePermanent(ctx context.Context, sess *session.Session, id int) error {
	if err := c.do(ctx, sess, http.MethodDelete, userPath(id)+"/permanent", nil, nil, nil); err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	return nil
}

// -- Service --

var (
	ErrInvalid = errors.New("invalid user")
	ErrSelf    = errors.New("you cannot deactivate or delete your own account")
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) List(ctx context.Context, sess *session.Session, q ListQuery) (*upstream.List[ManagedUser], error) {
	return s.repo.List(ctx, sess, q)
}

func (s *Service) Get(ctx context.Context, sess *session.Session, id int) (*ManagedUser, error) {
	return s.repo.Get(ctx, sess, id)
}

func (s *Service) Create(ctx context.Context, sess *session.Session, in *UserCreate) (*ManagedUser, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalid)
	}
	if in.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalid)
	}
	if in.Role == "" {
		in.Role = RoleUser
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: role must be user or admin", ErrInvalid)
	}
	if in.FullName != nil && strings.TrimSpace(*in.FullName) == "" {
		in.FullName = nil
	}
	u, err := s.repo.Create(ctx, sess, in)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int("user_id", u.ID).Str("username", u.Username).Str("role", string(u.Role)).Msg("user created")
	return u, nil
}

func (s *Service) Update(ctx context.Context, sess *session.Session, id int, in *UserUpdate) (*ManagedUser, error) {
	if in.Role != nil && !in.Role.Valid() {
		return nil, fmt.Errorf("%w: role must be user or admin", ErrInvalid)
	}
	if in.IsActive != nil && !*in.IsActive {
		if err := s.notSelf(ctx, sess, id); err != nil {
			return nil, err
		}
	}
	return s.repo.Update(ctx, sess, id, in)
}

func (s *Service) Deactivate(ctx context.Context, sess *session.Session, id int) error {
	if err := s.notSelf(ctx, sess, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, sess, id); err != nil {
		return err
	}
	s.logger.Info().Int("user_id", id).Msg("user deactivated")
	return nil
}

func (s *Service) DeletePermanent(ctx context.Context, sess *session.Session, id int) error {
	if err := s.notSelf(ctx, sess, id); err != nil {
		return err
	}
	if err := s.repo.DeletePermanent(ctx, sess, id); err != nil {
		return err
	}
	s.logger.Warn().Int("user_id", id).Msg("user permanently deleted")
	return nil
}

// notSelf rejects operations by the signed-in admin on their own account.
func (s *Service) notSelf(ctx context.Context, sess *session.Session, id int) error {
	admin := sess.Credential(session.SlotAdmin)
	if admin == nil {
		return nil
	}
	if admin.UserID != 0 {
		if admin.UserID == id {
			return ErrSelf
		}
		return nil
	}
	u, err := s.repo.Get(ctx, sess, id)
	if err != nil {
		return err
	}
	if u.Username == admin.Username {
		return ErrSelf
	}
	return nil
}
