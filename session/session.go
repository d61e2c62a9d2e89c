// Package session owns the signed in identity and its token pair.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pitabwire/util"
	"golang.org/x/oauth2"

	"github.com/pitabwire/barberdesk/api"
	"github.com/pitabwire/barberdesk/events"
	"github.com/pitabwire/barberdesk/storage"
)

var (
	// ErrNotAuthenticated is returned by Authorize while no session is active.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSessionExpired is returned when a refresh fails and the session ends.
	ErrSessionExpired = errors.New("session expired")
	// ErrUnsupportedOperation is returned by SwitchUser under token authentication.
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// State is a point in the session lifecycle.
type State int

const (
	Uninitialized State = iota
	Loading
	Refreshing
	Authenticated
	Anonymous
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Refreshing:
		return "refreshing"
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// AuthBackend is the subset of the REST collaborator the session talks to.
type AuthBackend interface {
	Me(ctx context.Context, accessToken string) (*api.User, error)
	Login(ctx context.Context, email string, password string) (*api.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*api.AuthResponse, error)
}

// Observer is told about every identity change. user is nil once the session ends.
type Observer func(ctx context.Context, user *api.User)

type Option func(*Manager)

// WithPublisher publishes login and logout events.
func WithPublisher(p *events.Publisher) Option {
	return func(m *Manager) {
		m.publisher = p
	}
}

// WithLogoutHook runs hook after every logout, forced or explicit.
func WithLogoutHook(hook func(ctx context.Context)) Option {
	return func(m *Manager) {
		m.logoutHook = hook
	}
}

// Manager is the single writer of the session.
type Manager struct {
	backend    AuthBackend
	durable    storage.Store
	tab        storage.Store
	publisher  *events.Publisher
	logoutHook func(ctx context.Context)

	mu        sync.RWMutex
	state     State
	user      *api.User
	token     *oauth2.Token
	observers []Observer

	// refreshMu makes concurrent unauthorized calls share one refresh.
	refreshMu sync.Mutex
}

func New(backend AuthBackend, stores storage.Manager, opts ...Option) *Manager {
	m := &Manager{
		backend: backend,
		durable: stores.Durable(),
		tab:     stores.Tab(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers an observer. Observers run synchronously after each transition.
func (m *Manager) Subscribe(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// User returns a copy of the signed in identity, or nil.
func (m *Manager) User() *api.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Token returns a copy of the current token pair, or nil.
func (m *Manager) Token() *oauth2.Token {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == nil {
		return nil
	}
	t := *m.token
	return &t
}

// ExpiresAt reads the expiry of the access token when it is a JWT.
func (m *Manager) ExpiresAt() (time.Time, bool) {
	tok := m.Token()
	if tok == nil || tok.Expiry.IsZero() {
		return time.Time{}, false
	}
	return tok.Expiry, true
}

// Bootstrap restores the session from persisted tokens.
func (m *Manager) Bootstrap(ctx context.Context) State {
	log := util.Log(ctx)

	m.setState(Loading)

	access, _ := m.durable.Get(ctx, storage.KeyAccessToken)
	if access == "" {
		m.setState(Anonymous)
		return Anonymous
	}
	refresh, _ := m.durable.Get(ctx, storage.KeyRefreshToken)

	m.mu.Lock()
	m.token = (&api.AuthResponse{AccessToken: access, RefreshToken: refresh}).Token()
	m.mu.Unlock()

	user, err := m.backend.Me(ctx, access)
	if err != nil {
		log.WithError(err).Info("stored access token rejected, refreshing")

		tok, rErr := m.refresh(ctx, access)
		if rErr != nil {
			return Anonymous
		}

		user, err = m.backend.Me(ctx, tok.AccessToken)
		if err != nil {
			log.WithError(err).Warn("identity lookup failed after refresh, signing out")
			m.signOut(ctx)
			return Anonymous
		}
	}

	m.authenticate(ctx, user, nil)
	return Authenticated
}

// Login signs in with credentials and persists the returned pair.
func (m *Manager) Login(ctx context.Context, email string, password string) (*api.User, error) {
	resp, err := m.backend.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, err
	}

	user := resp.User
	if user == nil {
		user, err = m.backend.Me(ctx, resp.AccessToken)
		if err != nil {
			return nil, err
		}
	}

	m.authenticate(ctx, user, resp.Token())

	u := *user
	return &u, nil
}

// Logout ends the session locally. No server call is made.
func (m *Manager) Logout(ctx context.Context) {
	m.signOut(ctx)
}

// SwitchUser is not possible with bearer tokens.
func (m *Manager) SwitchUser(_ context.Context, email string) error {
	return fmt.Errorf("switching to %q: %w", email, ErrUnsupportedOperation)
}

// Refresh exchanges the refresh token for a new pair. A failure ends the session.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err := m.refresh(ctx, "")
	return err
}

// Authorize runs fn with the current access token. When fn fails with
// api.ErrUnauthorized the token is refreshed once and fn runs once more.
func (m *Manager) Authorize(ctx context.Context, fn func(ctx context.Context, accessToken string) error) error {
	m.mu.RLock()
	tok, state := m.token, m.state
	m.mu.RUnlock()

	if tok == nil || state == Anonymous {
		return ErrNotAuthenticated
	}

	err := fn(ctx, tok.AccessToken)
	if !errors.Is(err, api.ErrUnauthorized) {
		return err
	}

	fresh, rErr := m.refresh(ctx, tok.AccessToken)
	if rErr != nil {
		return rErr
	}
	return fn(ctx, fresh.AccessToken)
}

// refresh swaps the pair unless another caller already replaced stale.
func (m *Manager) refresh(ctx context.Context, stale string) (*oauth2.Token, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	m.mu.Lock()
	current, previous := m.token, m.state
	if current == nil {
		m.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	if stale != "" && current.AccessToken != stale {
		m.mu.Unlock()
		t := *current
		return &t, nil
	}
	m.state = Refreshing
	m.mu.Unlock()

	if current.RefreshToken == "" {
		m.signOut(ctx)
		return nil, ErrSessionExpired
	}

	resp, err := m.backend.Refresh(ctx, current.RefreshToken)
	if err != nil {
		util.Log(ctx).WithError(err).Warn("token refresh failed, signing out")
		m.signOut(ctx)
		return nil, fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	if resp.RefreshToken == "" {
		resp.RefreshToken = current.RefreshToken
	}
	fresh := resp.Token()
	m.persist(ctx, fresh)

	m.mu.Lock()
	m.token = fresh
	m.state = previous
	if resp.User != nil {
		m.user = resp.User
	}
	m.mu.Unlock()

	t := *fresh
	return &t, nil
}

func (m *Manager) authenticate(ctx context.Context, user *api.User, tok *oauth2.Token) {
	if tok != nil {
		m.persist(ctx, tok)
	}

	m.mu.Lock()
	if tok != nil {
		m.token = tok
	}
	m.user = user
	m.state = Authenticated
	observers := m.observers
	m.mu.Unlock()

	util.Log(ctx).WithField("email", user.Email).Info("session authenticated")

	for _, o := range observers {
		o(ctx, user)
	}

	e := events.New(events.KindLogin)
	e.Email = user.Email
	m.publisher.Emit(ctx, e)
}

func (m *Manager) signOut(ctx context.Context) {
	m.durable.Remove(ctx, storage.KeyAccessToken)
	m.durable.Remove(ctx, storage.KeyRefreshToken)
	m.tab.Remove(ctx, storage.KeySelectedBusiness)

	m.mu.Lock()
	previous := m.user
	m.user = nil
	m.token = nil
	m.state = Anonymous
	observers := m.observers
	m.mu.Unlock()

	log := util.Log(ctx)
	e := events.New(events.KindLogout)
	if previous != nil {
		e.Email = previous.Email
		log = log.WithField("email", previous.Email)
	}
	log.Info("session ended")

	for _, o := range observers {
		o(ctx, nil)
	}

	m.publisher.Emit(ctx, e)

	if m.logoutHook != nil {
		m.logoutHook(ctx)
	}
}

func (m *Manager) persist(ctx context.Context, tok *oauth2.Token) {
	m.durable.Set(ctx, storage.KeyAccessToken, tok.AccessToken)
	if tok.RefreshToken != "" {
		m.durable.Set(ctx, storage.KeyRefreshToken, tok.RefreshToken)
	} else {
		m.durable.Remove(ctx, storage.KeyRefreshToken)
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}
