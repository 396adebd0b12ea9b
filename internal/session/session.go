// Package session holds the authenticated identity the realtime layer reads.
// It never mutates a session it was handed.
package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoSession    = errors.New("session: not authenticated")
	ErrInvalidToken = errors.New("session: invalid token")
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func (u User) IsSeller() bool { return u.Role == RoleSeller }

type Session struct {
	Token string
	User  User
}

// Provider reports the current session, if any.
type Provider interface {
	Current() (*Session, bool)
}

// Static is a Provider whose session is set at login and cleared at logout.
type Static struct {
	mu sync.RWMutex
	s  *Session
}

func NewStatic(s *Session) *Static {
	return &Static{s: s}
}

func (p *Static) Current() (*Session, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.s == nil || p.s.Token == "" {
		return nil, false
	}
	cp := *p.s
	return &cp, true
}

func (p *Static) Login(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.s = s
}

func (p *Static) Logout() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.s = nil
}

type claims struct {
	jwt.RegisteredClaims
	UserID   any    `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	IsSeller bool   `json:"isSeller,omitempty"`
}

// FromToken builds a session from a bearer JWT. The signature is not checked
// here; the API verifies it on every request.
func FromToken(token string) (*Session, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return nil, ErrNoSession
	}
	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id := stringID(c.UserID)
	if id == "" {
		id = c.Subject
	}
	if id == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}

	role := RoleBuyer
	if c.IsSeller || strings.EqualFold(c.Role, string(RoleSeller)) {
		role = RoleSeller
	}
	return &Session{
		Token: token,
		User:  User{ID: id, Username: c.Username, Role: role},
	}, nil
}

func stringID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}
