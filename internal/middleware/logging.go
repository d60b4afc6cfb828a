// Package middleware provides HTTP middleware for the kiosk server.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/abdul-hamid-achik/kiosk/internal/logging"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// Health endpoints are polled constantly and only logged at debug level.
var healthPaths = map[string]bool{
	"/health":     true,
	"/ready":      true,
	"/api/health": true,
	"/metrics":    true,
}

// requestID keeps a well-formed ID set by a proxy in front of the kiosk,
// otherwise it mints a new one.
func requestID(r *http.Request) string {
	if id, err := uuid.Parse(r.Header.Get(RequestIDHeader)); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

func levelFor(path string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case healthPaths[path]:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Logging tags each request with an ID and logs it once the handler returns.
func Logging(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := requestID(r)
			w.Header().Set(RequestIDHeader, id)

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r.WithContext(logging.WithRequestID(r.Context(), id)))

			status := rec.Status()
			logger.Log(context.Background(), levelFor(r.URL.Path, status), "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"size", rec.size,
				"duration", time.Since(start),
				"request_id", id,
				"remote_addr", ClientIP(r),
			)
		})
	}
}

// Recovery turns a handler panic into a 500 JSON error.
func Recovery(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("panic recovered",
						"error", err,
						"method", r.Method,
						"path", r.URL.Path,
						"request_id", logging.GetRequestID(r.Context()),
					)
					jsonError(w, http.StatusInternalServerError, "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
