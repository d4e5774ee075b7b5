// Package account handles staff and admin sign-in against the login service
// and binds the issued tokens to the console session.
package account

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aioc/hospital-console/internal/platform/session"
	"github.com/aioc/hospital-console/internal/platform/upstream"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is the login service's answer to a successful login.
type TokenResponse struct {
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	Role        string  `json:"role"`
	Username    string  `json:"username"`
	FullName    *string `json:"full_name"`
}

// UserInfo is the signed-in account as reported by the dashboard endpoints.
type UserInfo struct {
	ID       int     `json:"id"`
	Username string  `json:"username"`
	Role     string  `json:"role"`
	IsActive bool    `json:"is_active"`
	FullName *string `json:"full_name"`
}

type Authenticator interface {
	Login(ctx context.Context, slot session.Slot, username, password string) (*TokenResponse, error)
	Me(ctx context.Context, sess *session.Session, slot session.Slot) (*UserInfo, error)
}

// Client implements Authenticator over the login service.
type Client struct {
	api *upstream.Client
}

func NewClient(api *upstream.Client) *Client {
	return &Client{api: api}
}

func loginPath(slot session.Slot) string {
	if slot == session.SlotAdmin {
		return "/api/auth/admin/login"
	}
	return "/api/auth/login"
}

func (c *Client) Login(ctx context.Context, slot session.Slot, username, password string) (*TokenResponse, error) {
	var out TokenResponse
	body := LoginRequest{Username: username, Password: password}
	if err := c.api.Do(ctx, http.MethodPost, loginPath(slot), nil, "", body, &out); err != nil {
		return nil, fmt.Errorf("%s login: %w", slot, err)
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("%s login: empty access token", slot)
	}
	return &out, nil
}

func (c *Client) Me(ctx context.Context, sess *session.Session, slot session.Slot) (*UserInfo, error) {
	policy, path := session.StaffOnly, "/api/dashboard/me"
	if slot == session.SlotAdmin {
		policy, path = session.AdminOnly, "/api/admin/dashboard/me"
	}
	token, err := sess.Bearer(policy, time.Now())
	if err != nil {
		return nil, err
	}
	var out UserInfo
	if err := c.api.Get(ctx, path, nil, token, &out); err != nil {
		return nil, fmt.Errorf("%s me: %w", slot, err)
	}
	return &out, nil
}
