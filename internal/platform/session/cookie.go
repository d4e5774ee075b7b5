package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

var ErrBadCookie = errors.New("session: malformed or forged cookie")

// CookieCodec signs session IDs so a cookie value cannot be forged or
// tampered with. The value format is "<id>.<base64url HMAC-SHA256(id)>".
type CookieCodec struct {
	key []byte
}

func NewCookieCodec(key []byte) *CookieCodec {
	return &CookieCodec{key: key}
}

func (c *CookieCodec) sign(id string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (c *CookieCodec) Encode(id string) string {
	return id + "." + c.sign(id)
}

// Decode verifies value and returns the session ID it carries.
func (c *CookieCodec) Decode(value string) (string, error) {
	i := strings.LastIndexByte(value, '.')
	if i <= 0 || i == len(value)-1 {
		return "", ErrBadCookie
	}
	id, sig := value[:i], value[i+1:]
	if !hmac.Equal([]byte(sig), []byte(c.sign(id))) {
		return "", ErrBadCookie
	}
	return id, nil
}
