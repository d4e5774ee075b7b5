package session

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims are the claims the login service puts in its access tokens.
type AccessClaims struct {
	jwt.RegisteredClaims
	Role   string `json:"role"`
	UserID int    `json:"id"`
}

// TokenInspector reads access tokens issued by the login service. With a
// secret configured the HS256 signature and expiry are verified; without one
// the claims are only decoded and the upstream remains the authority.
type TokenInspector struct {
	secret []byte
}

func NewTokenInspector(secret []byte) *TokenInspector {
	return &TokenInspector{secret: secret}
}

// Verifies reports whether signatures are checked.
func (i *TokenInspector) Verifies() bool {
	return len(i.secret) > 0
}

func (i *TokenInspector) Parse(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if len(i.secret) == 0 {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("decode access token: %w", err)
		}
		return claims, nil
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("verify access token: %w", err)
	}
	return claims, nil
}

// Credential builds a slot credential from a freshly issued token.
func (i *TokenInspector) Credential(token, username, fullName, role string) (*Credential, error) {
	claims, err := i.Parse(token)
	if err != nil {
		return nil, err
	}
	cred := &Credential{
		Token:    token,
		Username: username,
		FullName: fullName,
		Role:     role,
		UserID:   claims.UserID,
	}
	if cred.Username == "" {
		cred.Username = claims.Subject
	}
	if cred.Role == "" {
		cred.Role = claims.Role
	}
	if claims.ExpiresAt != nil {
		cred.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return cred, nil
}
