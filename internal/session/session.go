// Package session describes the identity provider the client core depends
// on. Components receive a Provider explicitly instead of looking one up.
package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"evolv/internal/models"
)

var logger = logrus.WithField("component", "session")

type Event string

const (
	SignedIn         Event = "SIGNED_IN"
	SignedOut        Event = "SIGNED_OUT"
	UserUpdated      Event = "USER_UPDATED"
	PasswordRecovery Event = "PASSWORD_RECOVERY"
	TokenRefreshed   Event = "TOKEN_REFRESHED"
)

type OAuthProvider string

const (
	Google OAuthProvider = "google"
	GitHub OAuthProvider = "github"
)

func (p OAuthProvider) Valid() bool {
	return p == Google || p == GitHub
}

var (
	ErrNoSession            = errors.New("not signed in")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrUnsupportedProvider  = errors.New("oauth provider must be google or github")
	ErrOAuthNotAvailable    = errors.New("oauth sign-in is not available")
	ErrAccountAlreadyExists = errors.New("an account with this email already exists")
)

type Session struct {
	AccessToken  string      `json:"accessToken" yaml:"accessToken"`
	RefreshToken string      `json:"refreshToken,omitempty" yaml:"refreshToken,omitempty"`
	ExpiresAt    time.Time   `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
	User         models.User `json:"user" yaml:"user"`
}

// Expired reports whether the access token is past its expiry. A zero
// expiry never expires.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Listener is called after every session change. s is nil after sign-out.
type Listener func(ev Event, s *Session)

// Provider is the identity collaborator: it owns the current session and
// the sign-in and sign-out operations.
type Provider interface {
	CurrentSession(ctx context.Context) (*Session, error)
	OnSessionChange(fn Listener) (unsubscribe func())

	SignUp(ctx context.Context, email, password, name string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	// SignInWithOAuth returns the URL the user must visit to authorize.
	SignInWithOAuth(ctx context.Context, provider OAuthProvider, redirectTo string) (string, error)
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, password string) error
}

// AccessToken returns the bearer token of the current session, or "" when
// nobody is signed in.
func AccessToken(ctx context.Context, p Provider) (string, error) {
	if p == nil {
		return "", nil
	}
	s, err := p.CurrentSession(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return "", nil
		}
		return "", err
	}
	if s == nil {
		return "", nil
	}
	return s.AccessToken, nil
}

// Listeners is a registry of session listeners that providers embed.
type Listeners struct {
	mu   sync.Mutex
	next int
	subs map[int]Listener
}

func (l *Listeners) OnSessionChange(fn Listener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.subs == nil {
		l.subs = make(map[int]Listener)
	}
	id := l.next
	l.next++
	l.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.subs, id)
		})
	}
}

// Emit calls every listener in subscription order, outside the lock.
func (l *Listeners) Emit(ev Event, s *Session) {
	l.mu.Lock()
	ids := make([]int, 0, len(l.subs))
	for id := range l.subs {
		ids = append(ids, id)
	}
	fns := make([]Listener, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, l.subs[id])
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(ev, s)
	}
}
