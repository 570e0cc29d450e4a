package middleware

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/dreamjournal/internal/server/handlers"
	"github.com/iudanet/dreamjournal/internal/server/jwt"
)

// AuthMiddleware создает middleware для проверки JWT access token'а.
// Без валидного токена запрос отклоняется с 401.
func AuthMiddleware(logger *slog.Logger, tokens *jwt.Service) func(http.Handler) http.Handler {
	return authenticate(logger, tokens, true)
}

// OptionalAuthMiddleware пропускает анонимные запросы, но если токен передан,
// он должен быть валидным: клиент с протухшим токеном получает 401.
func OptionalAuthMiddleware(logger *slog.Logger, tokens *jwt.Service) func(http.Handler) http.Handler {
	return authenticate(logger, tokens, false)
}

func authenticate(logger *slog.Logger, tokens *jwt.Service, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				if !required {
					next.ServeHTTP(w, r)
					return
				}
				logger.WarnContext(ctx, "missing Authorization header", "path", r.URL.Path)
				handlers.WriteError(logger, w, "missing token", http.StatusUnauthorized)
				return
			}

			// Ожидаем формат: "Bearer <token>"
			tokenString, ok := jwt.BearerToken(authHeader)
			if !ok {
				logger.WarnContext(ctx, "invalid Authorization header format")
				handlers.WriteError(logger, w, "invalid token format", http.StatusUnauthorized)
				return
			}

			claims, err := tokens.ValidateAccessToken(tokenString)
			if err != nil {
				logger.WarnContext(ctx, "invalid access token", "error", err)
				handlers.WriteError(logger, w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			logger.DebugContext(ctx, "user authenticated", "user_id", claims.UserID, "username", claims.Username)

			next.ServeHTTP(w, r.WithContext(handlers.WithIdentity(ctx, claims.Identity())))
		})
	}
}
