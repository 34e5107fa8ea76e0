package supabase

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/supabase-community/gotrue-go/types"

	"evolv/internal/models"
	"evolv/internal/session"
)

// authBackend is the slice of the GoTrue API the provider needs.
type authBackend interface {
	signUp(email, password, name string) (*session.Session, error)
	signIn(email, password string) (*session.Session, error)
	refresh(refreshToken string) (*session.Session, error)
	authorizeURL(provider session.OAuthProvider) (string, error)
	signOut(accessToken string) error
	recover(email string) error
	updatePassword(accessToken, password string) error
}

// Auth is a session.Provider backed by Supabase Auth.
type Auth struct {
	session.Listeners

	backend authBackend
	now     func() time.Time
	log     *logrus.Entry

	mu      sync.Mutex
	current *session.Session
}

var _ session.Provider = (*Auth)(nil)

func NewAuth(client *Client) *Auth {
	return newAuth(&gotrueBackend{client: client})
}

func newAuth(backend authBackend) *Auth {
	return &Auth{
		backend: backend,
		now:     time.Now,
		log:     logrus.WithField("component", "supabase_auth"),
	}
}

// Restore installs a previously saved session without notifying listeners.
func (a *Auth) Restore(s *session.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = s
}

// CurrentSession returns the signed-in session, refreshing it first when
// the access token has expired.
func (a *Auth) CurrentSession(ctx context.Context) (*session.Session, error) {
	a.mu.Lock()
	cur := a.current
	a.mu.Unlock()

	if cur == nil {
		return nil, session.ErrNoSession
	}
	if !cur.Expired(a.now()) {
		s := *cur
		return &s, nil
	}
	if cur.RefreshToken == "" {
		return nil, session.ErrNoSession
	}

	refreshed, err := a.backend.refresh(cur.RefreshToken)
	if err != nil {
		a.log.WithError(err).Warn("Failed to refresh session")
		a.setSession(nil, session.SignedOut)
		return nil, session.ErrNoSession
	}
	a.setSession(refreshed, session.TokenRefreshed)
	s := *refreshed
	return &s, nil
}

func (a *Auth) SignUp(ctx context.Context, email, password, name string) (*session.Session, error) {
	s, err := a.backend.signUp(email, password, name)
	if err != nil {
		return nil, fmt.Errorf("failed to sign up: %w", err)
	}
	if s == nil {
		// email confirmation pending
		return nil, nil
	}
	a.setSession(s, session.SignedIn)
	return s, nil
}

func (a *Auth) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	s, err := a.backend.signIn(email, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrInvalidCredentials, err)
	}
	a.setSession(s, session.SignedIn)
	return s, nil
}

func (a *Auth) SignInWithOAuth(ctx context.Context, provider session.OAuthProvider, redirectTo string) (string, error) {
	if !provider.Valid() {
		return "", session.ErrUnsupportedProvider
	}
	authURL, err := a.backend.authorizeURL(provider)
	if err != nil {
		return "", fmt.Errorf("failed to start %s sign-in: %w", provider, err)
	}
	if redirectTo == "" {
		return authURL, nil
	}

	u, err := url.Parse(authURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse authorize url: %w", err)
	}
	q := u.Query()
	q.Set("redirect_to", redirectTo)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (a *Auth) SignOut(ctx context.Context) error {
	a.mu.Lock()
	cur := a.current
	a.mu.Unlock()
	if cur == nil {
		return nil
	}

	if err := a.backend.signOut(cur.AccessToken); err != nil {
		// the local session is dropped regardless
		a.log.WithError(err).Warn("Failed to revoke session")
	}
	a.setSession(nil, session.SignedOut)
	return nil
}

func (a *Auth) ResetPassword(ctx context.Context, email, redirectTo string) error {
	if err := a.backend.recover(email); err != nil {
		return fmt.Errorf("failed to send recovery email: %w", err)
	}
	a.Emit(session.PasswordRecovery, nil)
	return nil
}

func (a *Auth) UpdatePassword(ctx context.Context, password string) error {
	cur, err := a.CurrentSession(ctx)
	if err != nil {
		return err
	}
	if err := a.backend.updatePassword(cur.AccessToken, password); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	a.Emit(session.UserUpdated, cur)
	return nil
}

func (a *Auth) setSession(s *session.Session, ev session.Event) {
	a.mu.Lock()
	a.current = s
	a.mu.Unlock()

	var out *session.Session
	if s != nil {
		c := *s
		out = &c
	}
	a.Emit(ev, out)
}

type gotrueBackend struct {
	client *Client
}

func (b *gotrueBackend) signUp(email, password, name string) (*session.Session, error) {
	req := types.SignupRequest{Email: email, Password: password}
	if name != "" {
		req.Data = map[string]interface{}{"name": name}
	}
	resp, err := b.client.Supabase.Auth.Signup(req)
	if err != nil {
		return nil, err
	}
	if resp.Session.AccessToken == "" {
		return nil, nil
	}
	return fromGotrue(resp.Session), nil
}

func (b *gotrueBackend) signIn(email, password string) (*session.Session, error) {
	resp, err := b.client.Supabase.Auth.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, err
	}
	return fromGotrue(resp.Session), nil
}

func (b *gotrueBackend) refresh(refreshToken string) (*session.Session, error) {
	resp, err := b.client.Supabase.Auth.RefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	return fromGotrue(resp.Session), nil
}

func (b *gotrueBackend) authorizeURL(provider session.OAuthProvider) (string, error) {
	resp, err := b.client.Supabase.Auth.Authorize(types.AuthorizeRequest{Provider: types.Provider(provider)})
	if err != nil {
		return "", err
	}
	return resp.AuthorizationURL, nil
}

func (b *gotrueBackend) signOut(accessToken string) error {
	return b.client.Supabase.Auth.WithToken(accessToken).Logout()
}

func (b *gotrueBackend) recover(email string) error {
	return b.client.Supabase.Auth.Recover(types.RecoverRequest{Email: email})
}

func (b *gotrueBackend) updatePassword(accessToken, password string) error {
	_, err := b.client.Supabase.Auth.WithToken(accessToken).UpdateUser(types.UpdateUserRequest{Password: &password})
	return err
}

func fromGotrue(s types.Session) *session.Session {
	out := &session.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		User:         userFromGotrue(s.User),
	}
	if s.ExpiresAt > 0 {
		out.ExpiresAt = time.Unix(s.ExpiresAt, 0).UTC()
	}
	return out
}

func userFromGotrue(u types.User) models.User {
	return models.UserFromMetadata(u.ID.String(), u.Email, u.UserMetadata)
}
