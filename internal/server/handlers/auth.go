package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/dreamjournal/internal/crypto"
	"github.com/iudanet/dreamjournal/internal/models"
	"github.com/iudanet/dreamjournal/internal/server/jwt"
	"github.com/iudanet/dreamjournal/internal/server/metrics"
	"github.com/iudanet/dreamjournal/internal/server/storage"
	"github.com/iudanet/dreamjournal/internal/validation"
	"github.com/iudanet/dreamjournal/pkg/api"
)

// AuthHandler обрабатывает запросы identity provider'а
type AuthHandler struct {
	logger       *slog.Logger
	userStorage  storage.UserStorage
	tokenStorage storage.TokenStorage
	tokens       *jwt.Service
	metrics      *metrics.Metrics
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(
	logger *slog.Logger,
	userStorage storage.UserStorage,
	tokenStorage storage.TokenStorage,
	tokens *jwt.Service,
	m *metrics.Metrics,
) *AuthHandler {
	return &AuthHandler{
		logger:       logger,
		userStorage:  userStorage,
		tokenStorage: tokenStorage,
		tokens:       tokens,
		metrics:      m,
	}
}

// Register обрабатывает POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "bad register request", slog.Any("error", err))
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	for _, check := range []error{
		validation.ValidateUsername(req.Username),
		validation.ValidatePassword(req.Password),
		validation.ValidateDisplayName(req.DisplayName),
	} {
		if check != nil {
			h.logger.WarnContext(ctx, "invalid registration data", slog.String("username", req.Username), slog.Any("error", check))
			h.metrics.AuthEvent("register", false)
			sendError(h.logger, w, check.Error(), http.StatusBadRequest)
			return
		}
	}

	passwordHash, err := crypto.HashPassword(req.Password)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to hash password", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := h.userStorage.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			h.logger.WarnContext(ctx, "user already exists", slog.String("username", req.Username))
			h.metrics.AuthEvent("register", false)
			sendError(h.logger, w, "username already taken", http.StatusConflict)
			return
		}
		h.logger.ErrorContext(ctx, "failed to create user", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.metrics.AuthEvent("register", true)
	h.logger.InfoContext(ctx, "user registered successfully",
		slog.String("username", user.Username),
		slog.String("user_id", user.ID))

	sendJSON(h.logger, w, api.RegisterResponse{
		UserID:  user.ID,
		Message: "User registered successfully",
	}, http.StatusCreated)
}

// Login обрабатывает POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "bad login request", slog.Any("error", err))
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.userStorage.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.logger.WarnContext(ctx, "login failed: user not found", slog.String("username", req.Username))
			h.metrics.AuthEvent("login", false)
			sendError(h.logger, w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, crypto.ErrPasswordMismatch) {
			h.logger.WarnContext(ctx, "login failed: wrong password", slog.String("username", req.Username))
			h.metrics.AuthEvent("login", false)
			sendError(h.logger, w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to check password", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp, ok := h.issueTokens(w, r, user)
	if !ok {
		return
	}

	if err := h.userStorage.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		// Не критичная ошибка, логируем но не прерываем
		h.logger.WarnContext(ctx, "failed to update last login", slog.Any("error", err))
	}

	h.metrics.AuthEvent("login", true)
	h.logger.InfoContext(ctx, "user logged in successfully",
		slog.String("username", user.Username),
		slog.String("user_id", user.ID))

	sendJSON(h.logger, w, resp, http.StatusOK)
}

// Refresh обрабатывает POST /api/v1/auth/refresh.
// Refresh token передается в Authorization header и ротируется при каждом вызове.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	refreshToken, ok := jwt.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		sendError(h.logger, w, "refresh token is required", http.StatusUnauthorized)
		return
	}

	tokenHash, err := crypto.HashToken(refreshToken)
	if err != nil {
		sendError(h.logger, w, "invalid refresh token", http.StatusUnauthorized)
		return
	}

	storedToken, err := h.tokenStorage.GetRefreshToken(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			h.logger.WarnContext(ctx, "refresh token not found")
			h.metrics.AuthEvent("refresh", false)
			sendError(h.logger, w, "invalid refresh token", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get refresh token", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if time.Now().After(storedToken.ExpiresAt) {
		h.logger.WarnContext(ctx, "refresh token expired", slog.String("user_id", storedToken.UserID))
		h.metrics.AuthEvent("refresh", false)
		_ = h.tokenStorage.DeleteRefreshToken(ctx, tokenHash)
		sendError(h.logger, w, "refresh token expired", http.StatusUnauthorized)
		return
	}

	user, err := h.userStorage.GetUserByID(ctx, storedToken.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			sendError(h.logger, w, "invalid refresh token", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	// Удаляем старый refresh token до выдачи нового: повторно его использовать нельзя
	if err := h.tokenStorage.DeleteRefreshToken(ctx, tokenHash); err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			// параллельный refresh уже израсходовал этот токен
			h.metrics.AuthEvent("refresh", false)
			sendError(h.logger, w, "invalid refresh token", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to delete old refresh token", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp, ok := h.issueTokens(w, r, user)
	if !ok {
		return
	}

	h.metrics.AuthEvent("refresh", true)
	h.logger.InfoContext(ctx, "tokens refreshed successfully", slog.String("user_id", user.ID))

	sendJSON(h.logger, w, resp, http.StatusOK)
}

// Logout обрабатывает POST /api/v1/auth/logout (за AuthMiddleware).
// Удаляет все refresh token'ы пользователя.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := GetIdentity(ctx)
	if !ok {
		sendError(h.logger, w, "authentication required", http.StatusUnauthorized)
		return
	}

	deletedCount, err := h.tokenStorage.DeleteUserTokens(ctx, id.UserID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to delete user tokens", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "user logged out successfully",
		slog.String("user_id", id.UserID),
		slog.Int("tokens_deleted", deletedCount))

	w.WriteHeader(http.StatusNoContent)
}

// Me обрабатывает GET /api/v1/auth/me (за AuthMiddleware)
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := GetIdentity(ctx)
	if !ok {
		sendError(h.logger, w, "authentication required", http.StatusUnauthorized)
		return
	}

	// Берем актуальные данные: учетная запись могла быть удалена
	user, err := h.userStorage.GetUserByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			sendError(h.logger, w, "no active identity", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	sendJSON(h.logger, w, api.IdentityResponse{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
	}, http.StatusOK)
}

// issueTokens выдает пару access/refresh и сохраняет хеш refresh token'а.
// При ошибке ответ уже отправлен и ok == false.
func (h *AuthHandler) issueTokens(w http.ResponseWriter, r *http.Request, user *models.User) (api.TokenResponse, bool) {
	ctx := r.Context()

	accessToken, expiresIn, err := h.tokens.GenerateAccessToken(user)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate access token", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return api.TokenResponse{}, false
	}

	refresh, err := h.tokens.GenerateRefreshToken()
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate refresh token", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return api.TokenResponse{}, false
	}

	token := &models.RefreshToken{
		TokenHash: refresh.Hash,
		UserID:    user.ID,
		ExpiresAt: refresh.ExpiresAt,
		CreatedAt: time.Now(),
	}
	if err := h.tokenStorage.SaveRefreshToken(ctx, token); err != nil {
		h.logger.ErrorContext(ctx, "failed to save refresh token", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return api.TokenResponse{}, false
	}

	return api.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refresh.Token,
		ExpiresIn:    expiresIn,
		UserID:       user.ID,
		Username:     user.Username,
		DisplayName:  user.DisplayName,
	}, true
}
