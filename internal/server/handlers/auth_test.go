package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/dreamjournal/internal/crypto"
	"github.com/iudanet/dreamjournal/internal/models"
	"github.com/iudanet/dreamjournal/internal/server/jwt"
	"github.com/iudanet/dreamjournal/internal/server/metrics"
	"github.com/iudanet/dreamjournal/pkg/api"
)

var testSecret = []byte("handlers-test-secret-0123456789abcdef")

type authFixture struct {
	handler *AuthHandler
	users   *mockUserStorage
	tokens  *mockTokenStorage
	jwt     *jwt.Service
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		users:  newMockUserStorage(),
		tokens: newMockTokenStorage(),
		jwt:    jwt.NewService(testSecret, 15*time.Minute, 24*time.Hour),
	}
	f.handler = NewAuthHandler(setupTestLogger(), f.users, f.tokens, f.jwt, metrics.New())
	return f
}

// addUser регистрирует пользователя напрямую в mock хранилище
func (f *authFixture) addUser(t *testing.T, username, password string) *models.User {
	t.Helper()
	hash, err := crypto.HashPassword(password)
	require.NoError(t, err)
	user := &models.User{
		ID:           "id-" + username,
		Username:     username,
		DisplayName:  "Display " + username,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	f.users.users[username] = user
	return user
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func withIdentity(id models.Identity) func(*http.Request) {
	return func(r *http.Request) {
		*r = *r.WithContext(WithIdentity(r.Context(), id))
	}
}

func TestAuthHandler_Register(t *testing.T) {
	tests := []struct {
		body     any
		name     string
		wantMsg  string
		wantCode int
	}{
		{
			name:     "success",
			body:     api.RegisterRequest{Username: "dreamer", Password: "password123", DisplayName: "Dreamer"},
			wantCode: http.StatusCreated,
		},
		{
			name:     "invalid JSON",
			body:     "{invalid",
			wantCode: http.StatusBadRequest,
			wantMsg:  "invalid request body",
		},
		{
			name:     "missing password",
			body:     api.RegisterRequest{Username: "dreamer"},
			wantCode: http.StatusBadRequest,
			wantMsg:  "password is required",
		},
		{
			name:     "invalid username",
			body:     api.RegisterRequest{Username: "a!", Password: "password123"},
			wantCode: http.StatusBadRequest,
			wantMsg:  "username",
		},
		{
			name:     "short password",
			body:     api.RegisterRequest{Username: "dreamer", Password: "short"},
			wantCode: http.StatusBadRequest,
			wantMsg:  "at least 8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)
			rec := doJSON(t, f.handler.Register, http.MethodPost, "/api/v1/auth/register", tt.body, nil)

			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusCreated {
				resp := decodeBody[api.ErrorResponse](t, rec)
				assert.Contains(t, resp.Message, tt.wantMsg)
				return
			}

			resp := decodeBody[api.RegisterResponse](t, rec)
			assert.NotEmpty(t, resp.UserID)
			user := f.users.users["dreamer"]
			require.NotNil(t, user)
			assert.Equal(t, "Dreamer", user.DisplayName)
			assert.NoError(t, crypto.CheckPassword(user.PasswordHash, "password123"))
		})
	}
}

func TestAuthHandler_Register_DefaultDisplayName(t *testing.T) {
	f := newAuthFixture(t)
	rec := doJSON(t, f.handler.Register, http.MethodPost, "/api/v1/auth/register",
		api.RegisterRequest{Username: "luna", Password: "password123"}, nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "luna", f.users.users["luna"].DisplayName)
}

func TestAuthHandler_Register_DuplicateUsername(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "dreamer", "password123")

	rec := doJSON(t, f.handler.Register, http.MethodPost, "/api/v1/auth/register",
		api.RegisterRequest{Username: "dreamer", Password: "password123"}, nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthHandler_Register_StorageError(t *testing.T) {
	f := newAuthFixture(t)
	f.users.createError = errors.New("database error")

	rec := doJSON(t, f.handler.Register, http.MethodPost, "/api/v1/auth/register",
		api.RegisterRequest{Username: "dreamer", Password: "password123"}, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeBody[api.ErrorResponse](t, rec)
	assert.Equal(t, "internal server error", resp.Message)
}

func TestAuthHandler_Login(t *testing.T) {
	tests := []struct {
		body     any
		name     string
		wantCode int
	}{
		{name: "success", body: api.LoginRequest{Username: "dreamer", Password: "password123"}, wantCode: http.StatusOK},
		{name: "wrong password", body: api.LoginRequest{Username: "dreamer", Password: "wrong-password"}, wantCode: http.StatusUnauthorized},
		{name: "unknown user", body: api.LoginRequest{Username: "ghost", Password: "password123"}, wantCode: http.StatusUnauthorized},
		{name: "empty fields", body: api.LoginRequest{}, wantCode: http.StatusBadRequest},
		{name: "invalid JSON", body: "nope", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)
			user := f.addUser(t, "dreamer", "password123")

			rec := doJSON(t, f.handler.Login, http.MethodPost, "/api/v1/auth/login", tt.body, nil)
			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusOK {
				assert.Empty(t, f.tokens.tokens)
				return
			}

			resp := decodeBody[api.TokenResponse](t, rec)
			assert.Equal(t, user.ID, resp.UserID)
			assert.Equal(t, "Display dreamer", resp.DisplayName)
			assert.Equal(t, int64(900), resp.ExpiresIn)

			claims, err := f.jwt.ValidateAccessToken(resp.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, user.ID, claims.UserID)

			// на сервере хранится только хеш refresh token'а
			hash, err := crypto.HashToken(resp.RefreshToken)
			require.NoError(t, err)
			assert.Contains(t, f.tokens.tokens, hash)
			assert.NotContains(t, f.tokens.tokens, resp.RefreshToken)
		})
	}
}

func TestAuthHandler_Login_UpdateLastLoginError(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "dreamer", "password123")
	f.users.updateLastLogin = func(context.Context, string, time.Time) error {
		return errors.New("update failed")
	}

	rec := doJSON(t, f.handler.Login, http.MethodPost, "/api/v1/auth/login",
		api.LoginRequest{Username: "dreamer", Password: "password123"}, nil)

	// не критичная ошибка
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthHandler_Login_SaveTokenError(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "dreamer", "password123")
	f.tokens.saveError = errors.New("disk full")

	rec := doJSON(t, f.handler.Login, http.MethodPost, "/api/v1/auth/login",
		api.LoginRequest{Username: "dreamer", Password: "password123"}, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func loginForTokens(t *testing.T, f *authFixture) api.TokenResponse {
	t.Helper()
	rec := doJSON(t, f.handler.Login, http.MethodPost, "/api/v1/auth/login",
		api.LoginRequest{Username: "dreamer", Password: "password123"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return decodeBody[api.TokenResponse](t, rec)
}

func TestAuthHandler_Refresh_RotatesToken(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "dreamer", "password123")
	first := loginForTokens(t, f)

	rec := doJSON(t, f.handler.Refresh, http.MethodPost, "/api/v1/auth/refresh", nil, bearer(first.RefreshToken))
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeBody[api.TokenResponse](t, rec)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Len(t, f.tokens.tokens, 1)

	// старый токен больше не работает
	rec = doJSON(t, f.handler.Refresh, http.MethodPost, "/api/v1/auth/refresh", nil, bearer(first.RefreshToken))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_Refresh_Errors(t *testing.T) {
	tests := []struct {
		setup    func(f *authFixture) func(*http.Request)
		name     string
		wantCode int
	}{
		{
			name:     "missing header",
			setup:    func(*authFixture) func(*http.Request) { return nil },
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "invalid header format",
			setup: func(*authFixture) func(*http.Request) {
				return func(r *http.Request) { r.Header.Set("Authorization", "Token abc") }
			},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "unknown token",
			setup:    func(*authFixture) func(*http.Request) { return bearer("unknown") },
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "expired token",
			setup: func(f *authFixture) func(*http.Request) {
				hash, _ := crypto.HashToken("expired")
				f.tokens.tokens[hash] = &models.RefreshToken{
					TokenHash: hash,
					UserID:    "id-dreamer",
					ExpiresAt: time.Now().Add(-time.Hour),
				}
				return bearer("expired")
			},
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "storage error",
			setup: func(f *authFixture) func(*http.Request) {
				f.tokens.getError = errors.New("db down")
				return bearer("whatever")
			},
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)
			f.addUser(t, "dreamer", "password123")
			rec := doJSON(t, f.handler.Refresh, http.MethodPost, "/api/v1/auth/refresh", nil, tt.setup(f))
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	f := newAuthFixture(t)
	user := f.addUser(t, "dreamer", "password123")
	loginForTokens(t, f)
	loginForTokens(t, f)
	require.Len(t, f.tokens.tokens, 2)

	rec := doJSON(t, f.handler.Logout, http.MethodPost, "/api/v1/auth/logout", nil,
		withIdentity(models.Identity{UserID: user.ID, Username: user.Username}))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.tokens.tokens)
}

func TestAuthHandler_Logout_NoIdentity(t *testing.T) {
	f := newAuthFixture(t)
	rec := doJSON(t, f.handler.Logout, http.MethodPost, "/api/v1/auth/logout", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_Logout_DeleteUserTokensError(t *testing.T) {
	f := newAuthFixture(t)
	f.tokens.deleteError = errors.New("db down")
	rec := doJSON(t, f.handler.Logout, http.MethodPost, "/api/v1/auth/logout", nil,
		withIdentity(models.Identity{UserID: "id-dreamer"}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAuthHandler_Me(t *testing.T) {
	f := newAuthFixture(t)
	user := f.addUser(t, "dreamer", "password123")

	rec := doJSON(t, f.handler.Me, http.MethodGet, "/api/v1/auth/me", nil,
		withIdentity(models.Identity{UserID: user.ID}))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[api.IdentityResponse](t, rec)
	assert.Equal(t, api.IdentityResponse{UserID: user.ID, Username: "dreamer", DisplayName: "Display dreamer"}, resp)

	// пользователь удален: identity больше не активна
	rec = doJSON(t, f.handler.Me, http.MethodGet, "/api/v1/auth/me", nil,
		withIdentity(models.Identity{UserID: "deleted"}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
