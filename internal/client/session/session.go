// Package session tracks the identity of the running client.
//
// Manager is the only source of identity changes: it pushes a notification to
// every subscriber after each transition and once on Start. Subscribers never
// poll.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iudanet/dreamjournal/internal/client/api"
	"github.com/iudanet/dreamjournal/internal/client/storage"
	"github.com/iudanet/dreamjournal/internal/models"
	"github.com/iudanet/dreamjournal/internal/validation"
	pkgapi "github.com/iudanet/dreamjournal/pkg/api"
)

// RefreshLeeway: access token обновляется, если истекает раньше этого срока
const RefreshLeeway = 30 * time.Second

// ErrSignedOut is returned when an operation needs an identity and there is none
var ErrSignedOut = errors.New("signed out")

// IdentityProvider is the remote side of authentication
type IdentityProvider interface {
	Register(ctx context.Context, req pkgapi.RegisterRequest) (*pkgapi.RegisterResponse, error)
	Login(ctx context.Context, req pkgapi.LoginRequest) (*pkgapi.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*pkgapi.TokenResponse, error)
	Logout(ctx context.Context, accessToken string) error
	Me(ctx context.Context, accessToken string) (*models.Identity, error)
}

// State is a snapshot of the session. Identity is nil when signed out.
type State struct {
	Identity *models.Identity
}

// SignedIn reports whether the state carries an identity
func (s State) SignedIn() bool {
	return s.Identity != nil
}

// Listener receives identity-change notifications. ctx is the context of the
// call that caused the transition.
type Listener func(ctx context.Context, st State)

type subscriber struct {
	fn Listener
	id int
}

// Manager implements the SignedOut / SignedIn state machine
type Manager struct {
	provider IdentityProvider
	store    storage.AuthStorage
	logger   *slog.Logger
	now      func() time.Time

	refreshGroup singleflight.Group

	mu          sync.Mutex
	auth        *storage.AuthData
	subscribers []subscriber
	nextID      int
}

// NewManager создает менеджер сессии в состоянии SignedOut
func NewManager(provider IdentityProvider, store storage.AuthStorage, logger *slog.Logger) *Manager {
	return &Manager{
		provider: provider,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// Subscribe registers a listener and returns a function that removes it.
// Listeners run synchronously in subscription order.
func (m *Manager) Subscribe(fn Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subscribers = append(m.subscribers, subscriber{id: id, fn: fn})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.subscribers {
			if s.id == id {
				m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
				return
			}
		}
	}
}

// State returns the current session state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// Identity returns the signed-in identity
func (m *Manager) Identity() (models.Identity, bool) {
	st := m.State()
	if st.Identity == nil {
		return models.Identity{}, false
	}
	return *st.Identity, true
}

func (m *Manager) stateLocked() State {
	if m.auth == nil {
		return State{}
	}
	return State{Identity: &models.Identity{
		UserID:      m.auth.UserID,
		Username:    m.auth.Username,
		DisplayName: m.auth.DisplayName,
	}}
}

// setAuth заменяет сессию и уведомляет подписчиков.
// Подписчики вызываются без удержания мьютекса.
func (m *Manager) setAuth(ctx context.Context, auth *storage.AuthData) {
	m.mu.Lock()
	m.auth = auth
	st := m.stateLocked()
	subs := make([]subscriber, len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.Unlock()

	for _, s := range subs {
		s.fn(ctx, st)
	}
}

// Start restores the persisted session and emits the first notification
func (m *Manager) Start(ctx context.Context) error {
	auth, err := m.store.GetAuth(ctx)
	if err != nil {
		m.setAuth(ctx, nil)
		if errors.Is(err, storage.ErrAuthNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load session: %w", err)
	}

	if auth.AccessExpired(m.now(), RefreshLeeway) {
		auth, err = m.rotate(ctx, auth)
		if err != nil {
			m.dropSession(ctx, err)
			m.setAuth(ctx, nil)
			return nil
		}
	}

	identity, err := m.provider.Me(ctx, auth.AccessToken)
	if err != nil {
		m.dropSession(ctx, err)
		m.setAuth(ctx, nil)
		return nil
	}

	// Отображаемое имя могло измениться на сервере
	if identity.DisplayName != auth.DisplayName || identity.Username != auth.Username {
		auth.DisplayName = identity.DisplayName
		auth.Username = identity.Username
		if err := m.store.SaveAuth(ctx, auth); err != nil {
			m.logger.WarnContext(ctx, "failed to persist session", "error", err)
		}
	}

	m.logger.DebugContext(ctx, "session restored", "username", auth.Username)
	m.setAuth(ctx, auth)
	return nil
}

// Register creates an account at the provider. It does not sign in.
func (m *Manager) Register(ctx context.Context, username, password, displayName string) (string, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return "", fmt.Errorf("invalid username: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return "", fmt.Errorf("invalid password: %w", err)
	}
	if displayName != "" {
		if err := validation.ValidateDisplayName(displayName); err != nil {
			return "", fmt.Errorf("invalid display name: %w", err)
		}
	}

	resp, err := m.provider.Register(ctx, pkgapi.RegisterRequest{
		Username:    username,
		Password:    password,
		DisplayName: displayName,
	})
	if err != nil {
		m.logger.WarnContext(ctx, "registration failed", "username", username, "error", err)
		return "", fmt.Errorf("registration failed: %w", err)
	}

	return resp.UserID, nil
}

// Login signs in. On failure the state is left as it was.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	if err := validation.ValidateUsername(username); err != nil {
		return fmt.Errorf("invalid username: %w", err)
	}
	if password == "" {
		return fmt.Errorf("invalid password: %w", validation.ErrRequired)
	}

	resp, err := m.provider.Login(ctx, pkgapi.LoginRequest{Username: username, Password: password})
	if err != nil {
		m.logger.WarnContext(ctx, "login failed", "username", username, "error", err)
		return fmt.Errorf("login failed: %w", err)
	}

	auth := m.authFromTokens(resp)
	if err := m.store.SaveAuth(ctx, auth); err != nil {
		// Сессия остается рабочей в памяти, но не переживет перезапуск
		m.logger.WarnContext(ctx, "failed to persist session", "error", err)
	}

	m.logger.InfoContext(ctx, "signed in", "username", auth.Username)
	m.setAuth(ctx, auth)
	return nil
}

// Logout signs out. The server call is best effort, the local session is
// always removed.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	auth := m.auth
	m.mu.Unlock()

	if auth == nil {
		stored, err := m.store.GetAuth(ctx)
		if err == nil {
			auth = stored
		}
	}

	if auth != nil {
		token := auth.AccessToken
		// С просроченным access token сервер не отзовет refresh tokens
		if auth.AccessExpired(m.now(), RefreshLeeway) && auth.RefreshToken != "" {
			if rotated, err := m.rotate(ctx, auth); err != nil {
				m.logger.WarnContext(ctx, "failed to refresh token before logout", "error", err)
			} else {
				token = rotated.AccessToken
			}
		}
		if token != "" {
			if err := m.provider.Logout(ctx, token); err != nil {
				// Не прерываем процесс, если сервер недоступен
				m.logger.WarnContext(ctx, "failed to logout on server", "error", err)
			}
		}
	}

	deleteErr := m.store.DeleteAuth(ctx)
	m.setAuth(ctx, nil)

	if deleteErr != nil {
		return fmt.Errorf("failed to delete local session: %w", deleteErr)
	}
	return nil
}

// Invalidate drops the session after the backend rejected its token.
// Without a session it does nothing and notifies nobody.
func (m *Manager) Invalidate(ctx context.Context) {
	m.mu.Lock()
	signedIn := m.auth != nil
	m.mu.Unlock()

	if !signedIn {
		return
	}

	m.logger.InfoContext(ctx, "session rejected by backend, signing out")
	if err := m.store.DeleteAuth(ctx); err != nil {
		m.logger.WarnContext(ctx, "failed to delete local session", "error", err)
	}
	m.setAuth(ctx, nil)
}

// AccessToken returns a usable access token, refreshing it when it is about
// to expire. A failed refresh signs the session out.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	auth := m.auth
	m.mu.Unlock()

	if auth == nil {
		return "", ErrSignedOut
	}
	if !auth.AccessExpired(m.now(), RefreshLeeway) {
		return auth.AccessToken, nil
	}

	// Refresh token одноразовый: параллельные вызовы делят один запрос
	v, err, _ := m.refreshGroup.Do(auth.RefreshToken, func() (any, error) {
		rotated, err := m.rotate(ctx, auth)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		if m.auth == auth {
			m.auth = rotated
		}
		m.mu.Unlock()
		return rotated.AccessToken, nil
	})
	if err != nil {
		m.dropSession(ctx, err)
		m.setAuth(ctx, nil)
		return "", fmt.Errorf("%w: %w", ErrSignedOut, err)
	}

	return v.(string), nil
}

// rotate обменивает refresh token на новую пару и сохраняет ее
func (m *Manager) rotate(ctx context.Context, auth *storage.AuthData) (*storage.AuthData, error) {
	if auth.RefreshToken == "" {
		return nil, fmt.Errorf("no refresh token: %w", api.ErrPermissionDenied)
	}

	resp, err := m.provider.Refresh(ctx, auth.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	rotated := m.authFromTokens(resp)
	// Сервер может не вернуть данные identity при refresh
	if rotated.UserID == "" {
		rotated.UserID = auth.UserID
	}
	if rotated.Username == "" {
		rotated.Username = auth.Username
	}
	if rotated.DisplayName == "" {
		rotated.DisplayName = auth.DisplayName
	}

	if err := m.store.SaveAuth(ctx, rotated); err != nil {
		m.logger.WarnContext(ctx, "failed to persist rotated tokens", "error", err)
	}

	m.logger.DebugContext(ctx, "access token refreshed", "username", rotated.Username)
	return rotated, nil
}

// dropSession удаляет сохраненную сессию, если провайдер ее отверг.
// При недоступности сервера сессия остается на диске до следующего запуска.
func (m *Manager) dropSession(ctx context.Context, cause error) {
	if !errors.Is(cause, api.ErrPermissionDenied) {
		m.logger.WarnContext(ctx, "identity provider unavailable, continuing signed out", "error", cause)
		return
	}

	m.logger.InfoContext(ctx, "stored session is no longer valid", "error", cause)
	if err := m.store.DeleteAuth(ctx); err != nil {
		m.logger.WarnContext(ctx, "failed to delete local session", "error", err)
	}
}

func (m *Manager) authFromTokens(resp *pkgapi.TokenResponse) *storage.AuthData {
	return &storage.AuthData{
		UserID:       resp.UserID,
		Username:     resp.Username,
		DisplayName:  resp.DisplayName,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    m.now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix(),
	}
}
