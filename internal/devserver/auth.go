package devserver

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pelusa-v/pelusa-live/internal/session"
)

// Authenticator turns a bearer token into a session. With a secret set the
// HS256 signature and expiry are checked; without one any well-formed token
// is accepted.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) Authenticate(token string) (*session.Session, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if raw == "" {
		return nil, session.ErrNoSession
	}
	if len(a.secret) > 0 {
		_, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return a.secret, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", session.ErrInvalidToken, err)
		}
	}
	return session.FromToken(raw)
}

// SignToken issues an HS256 token for user, for local testing.
func SignToken(secret string, user session.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":      user.ID,
		"id":       user.ID,
		"username": user.Username,
		"role":     string(user.Role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
