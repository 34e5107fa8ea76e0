package session

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"evolv/internal/models"
)

// Static is an in-process provider with a fixed account list. It backs
// tests and local development where a token is supplied up front.
type Static struct {
	Listeners

	mu       sync.Mutex
	current  *Session
	accounts map[string]*account
	issue    func(models.User) (string, error)
}

type account struct {
	password string
	user     models.User
}

type StaticOption func(*Static)

// WithSession starts the provider signed in.
func WithSession(s *Session) StaticOption {
	return func(p *Static) { p.current = s }
}

// WithAccount registers an email/password pair.
func WithAccount(email, password string, user models.User) StaticOption {
	return func(p *Static) {
		p.accounts[normalizeEmail(email)] = &account{password: password, user: user}
	}
}

// WithTokenIssuer sets how access tokens are minted on sign-in.
func WithTokenIssuer(fn func(models.User) (string, error)) StaticOption {
	return func(p *Static) { p.issue = fn }
}

func NewStatic(opts ...StaticOption) *Static {
	p := &Static{
		accounts: make(map[string]*account),
		issue:    func(u models.User) (string, error) { return "static-" + u.ID, nil },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FromToken signs in with a bare access token, as given by EVOLV_TOKEN.
func FromToken(token string) *Static {
	if token == "" {
		return NewStatic()
	}
	return NewStatic(WithSession(&Session{AccessToken: token}))
}

func (p *Static) CurrentSession(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil, ErrNoSession
	}
	s := *p.current
	return &s, nil
}

func (p *Static) SignUp(ctx context.Context, email, password, name string) (*Session, error) {
	key := normalizeEmail(email)
	if key == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	p.mu.Lock()
	if _, exists := p.accounts[key]; exists {
		p.mu.Unlock()
		return nil, ErrAccountAlreadyExists
	}
	user := models.User{ID: uuid.NewString(), Email: key, Name: name}
	p.accounts[key] = &account{password: password, user: user}
	p.mu.Unlock()

	return p.signIn(user)
}

func (p *Static) SignIn(ctx context.Context, email, password string) (*Session, error) {
	p.mu.Lock()
	acct, ok := p.accounts[normalizeEmail(email)]
	p.mu.Unlock()
	if !ok || acct.password != password {
		return nil, ErrInvalidCredentials
	}
	return p.signIn(acct.user)
}

func (p *Static) signIn(user models.User) (*Session, error) {
	token, err := p.issue(user)
	if err != nil {
		return nil, err
	}
	s := &Session{AccessToken: token, User: user}

	p.mu.Lock()
	p.current = s
	p.mu.Unlock()

	out := *s
	p.Emit(SignedIn, &out)
	return &out, nil
}

func (p *Static) SignInWithOAuth(ctx context.Context, provider OAuthProvider, redirectTo string) (string, error) {
	if !provider.Valid() {
		return "", ErrUnsupportedProvider
	}
	return "", ErrOAuthNotAvailable
}

func (p *Static) SignOut(ctx context.Context) error {
	p.mu.Lock()
	had := p.current != nil
	p.current = nil
	p.mu.Unlock()

	if had {
		p.Emit(SignedOut, nil)
	}
	return nil
}

func (p *Static) ResetPassword(ctx context.Context, email, redirectTo string) error {
	p.mu.Lock()
	_, ok := p.accounts[normalizeEmail(email)]
	p.mu.Unlock()
	if ok {
		p.Emit(PasswordRecovery, nil)
	}
	// Unknown addresses are not reported, like a real mailer.
	return nil
}

func (p *Static) UpdatePassword(ctx context.Context, password string) error {
	if password == "" {
		return ErrInvalidCredentials
	}

	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return ErrNoSession
	}
	if acct, ok := p.accounts[normalizeEmail(p.current.User.Email)]; ok {
		acct.password = password
	}
	s := *p.current
	p.mu.Unlock()

	p.Emit(UserUpdated, &s)
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
