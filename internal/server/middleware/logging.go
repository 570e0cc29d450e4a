package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/dreamjournal/internal/server/metrics"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

// WriteHeader captures the status code
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the number of bytes written
func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// LoggingMiddleware логирует HTTP запросы и пишет их в метрики.
// Запросы к skipPaths (health, metrics) не логируются, но учитываются в метриках.
// Тела запросов и заголовки (токены, пароли) не логируются.
func LoggingMiddleware(logger *slog.Logger, m *metrics.Metrics, skipPaths ...string) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)

			// ServeMux записывает шаблон маршрута в r.Pattern, им и помечаем метрики,
			// чтобы id в пути не раздували кардинальность
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			if m != nil {
				m.ObserveRequest(route, r.Method, wrapped.statusCode, duration)
			}

			if skip[r.URL.Path] {
				return
			}

			logLevel := slog.LevelInfo
			if wrapped.statusCode >= 500 {
				logLevel = slog.LevelError
			} else if wrapped.statusCode >= 400 {
				logLevel = slog.LevelWarn
			}

			logger.Log(r.Context(), logLevel, "HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
				"status", wrapped.statusCode,
				"duration_ms", duration.Milliseconds(),
				"bytes_written", wrapped.written,
			)
		})
	}
}
