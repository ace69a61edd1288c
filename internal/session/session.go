// Package session holds the signed-in user's bearer token for the client.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"coinfolio/internal/client"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const minPasswordLen = 6

var (
	ErrMissingUsername  = errors.New("username is required")
	ErrWeakPassword     = errors.New("password must be at least 6 characters long")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// Authenticator exchanges credentials for a token.
type Authenticator interface {
	Login(ctx context.Context, cr client.Credentials) (string, error)
	Register(ctx context.Context, cr client.Credentials) (string, error)
}

// User is decoded from the token payload without verifying it. It is for
// display only; the backend decides what the token may do.
type User struct {
	Username  string
	ExpiresAt time.Time
}

type Session struct {
	mu    sync.RWMutex
	token string
	store Store
	log   *logrus.Logger
}

var _ client.TokenSource = (*Session)(nil)

// New restores any token previously saved in store.
func New(store Store, log *logrus.Logger) (*Session, error) {
	tok, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &Session{token: tok, store: store, log: log}, nil
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) IsAuthenticated() bool { return s.Token() != "" }

// Login stores the token for cr. On failure nothing is written.
func (s *Session) Login(ctx context.Context, a Authenticator, cr client.Credentials) error {
	cr.Username = strings.TrimSpace(cr.Username)
	if cr.Username == "" {
		return ErrMissingUsername
	}
	tok, err := a.Login(ctx, cr)
	if err != nil {
		s.log.Warnf("login failed for %q: %v", cr.Username, err)
		return err
	}
	return s.set(tok)
}

// Register checks the form locally, creates the account and signs in.
func (s *Session) Register(ctx context.Context, a Authenticator, cr client.Credentials, confirm string) error {
	cr.Username = strings.TrimSpace(cr.Username)
	switch {
	case cr.Username == "":
		return ErrMissingUsername
	case len(cr.Password) < minPasswordLen:
		return ErrWeakPassword
	case cr.Password != confirm:
		return ErrPasswordMismatch
	}
	tok, err := a.Register(ctx, cr)
	if err != nil {
		return err
	}
	return s.set(tok)
}

func (s *Session) set(tok string) error {
	if tok == "" {
		return errors.New("empty token from server")
	}
	if err := s.store.Save(tok); err != nil {
		return err
	}
	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()
	return nil
}

func (s *Session) Logout() error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return s.store.Clear()
}

// CurrentUser decodes the token's claims. Any malformed token yields no
// user.
func (s *Session) CurrentUser() (User, bool) {
	return DecodeUser(s.Token())
}

func DecodeUser(token string) (User, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return User{}, false
	}
	u := User{Username: claims.Subject}
	if u.Username == "" {
		u.Username = "Unknown"
	}
	if claims.ExpiresAt != nil {
		u.ExpiresAt = claims.ExpiresAt.Time
	}
	return u, true
}
