// Package session holds the console's authenticated state for one browser.
//
// A Session carries two independent credential slots, one for the staff
// (user) login and one for the admin login, and is passed explicitly to every
// upstream client call. Persistence is delegated to a Store.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoCredential = errors.New("session: no credential for this operation")
	ErrExpired      = errors.New("session: credential expired")
)

// Slot names one of the two credential slots.
type Slot string

const (
	SlotStaff Slot = "staff"
	SlotAdmin Slot = "admin"
)

// ParseSlot accepts both the slot names and the login-service role names
// ("user" for staff).
func ParseSlot(s string) (Slot, bool) {
	switch s {
	case "staff", "user":
		return SlotStaff, true
	case "admin":
		return SlotAdmin, true
	}
	return "", false
}

// Policy selects which slot an upstream call authenticates with.
type Policy int

const (
	// StaffOnly uses the staff token.
	StaffOnly Policy = iota
	// AdminOnly uses the admin token.
	AdminOnly
	// AdminFirst prefers the admin token and falls back to staff.
	AdminFirst
	// StaffFirst prefers the staff token and falls back to admin.
	StaffFirst
)

func (p Policy) slots() []Slot {
	switch p {
	case StaffOnly:
		return []Slot{SlotStaff}
	case AdminOnly:
		return []Slot{SlotAdmin}
	case AdminFirst:
		return []Slot{SlotAdmin, SlotStaff}
	default:
		return []Slot{SlotStaff, SlotAdmin}
	}
}

// Credential is an access token issued by the login service together with
// the identity it was issued for.
type Credential struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name,omitempty"`
	Role      string    `json:"role"`
	UserID    int       `json:"user_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the token's exp claim has passed. A zero ExpiresAt
// never expires locally; the upstream still enforces its own expiry.
func (c *Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

type Session struct {
	ID        string
	Staff     *Credential
	Admin     *Credential
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// New returns an unsaved session valid for ttl.
func New(ttl time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Rotate moves s to a fresh ID and returns the previous one.
func (s *Session) Rotate() string {
	old := s.ID
	s.ID = uuid.NewString()
	return old
}

// Credential returns the credential held in slot, or nil.
func (s *Session) Credential(slot Slot) *Credential {
	switch slot {
	case SlotStaff:
		return s.Staff
	case SlotAdmin:
		return s.Admin
	}
	return nil
}

func (s *Session) Set(slot Slot, c *Credential) {
	switch slot {
	case SlotStaff:
		s.Staff = c
	case SlotAdmin:
		s.Admin = c
	}
	s.UpdatedAt = time.Now().UTC()
}

func (s *Session) Clear(slot Slot) {
	s.Set(slot, nil)
}

// Empty reports whether neither slot holds a credential.
func (s *Session) Empty() bool {
	return s.Staff == nil && s.Admin == nil
}

// Active reports whether slot holds a credential that has not expired.
func (s *Session) Active(slot Slot, now time.Time) bool {
	c := s.Credential(slot)
	return c != nil && !c.Expired(now)
}

// Bearer returns the token to present upstream under policy p. ErrExpired is
// returned when the only candidate credentials have expired.
func (s *Session) Bearer(p Policy, now time.Time) (string, error) {
	sawExpired := false
	for _, slot := range p.slots() {
		c := s.Credential(slot)
		if c == nil {
			continue
		}
		if c.Expired(now) {
			sawExpired = true
			continue
		}
		return c.Token, nil
	}
	if sawExpired {
		return "", ErrExpired
	}
	return "", ErrNoCredential
}

// Clone returns a deep copy so stores never share credentials between
// concurrent requests.
func (s *Session) Clone() *Session {
	out := *s
	if s.Staff != nil {
		c := *s.Staff
		out.Staff = &c
	}
	if s.Admin != nil {
		c := *s.Admin
		out.Admin = &c
	}
	return &out
}
