package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/iudanet/dreamjournal/internal/server/handlers"
)

// RecoveryMiddleware создает middleware для восстановления после паники.
// Перехватывает panic, логирует стек вызовов и возвращает 500 с JSON ошибкой.
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}

					logger.ErrorContext(r.Context(), "panic recovered",
						"error", err,
						"method", r.Method,
						"path", r.URL.Path,
						"remote_addr", r.RemoteAddr,
						"stack", string(debug.Stack()),
					)

					// Детали паники клиенту не раскрываем
					handlers.WriteError(logger, w, "internal server error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Chain применяет middleware в порядке перечисления: первый будет внешним
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
