package middleware

import (
	"context"
	"net/http"
	"time"
)

// SessionCookieName is the name of the admin session cookie.
const SessionCookieName = "kiosk_session"

// SessionIDKey is the context key for the validated session ID.
type SessionIDKey struct{}

// SessionValidator validates a session ID and refreshes its idle timer.
type SessionValidator interface {
	Validate(id string) bool
}

// SessionCookie describes how the session cookie is written.
type SessionCookie struct {
	MaxAge time.Duration
	// Secure forces the Secure attribute even when the request arrived
	// without TLS, e.g. behind a TLS-terminating proxy.
	Secure bool
}

// Set writes the session cookie for id.
func (c SessionCookie) Set(w http.ResponseWriter, r *http.Request, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(c.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure || r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}

// Clear expires the session cookie.
func (c SessionCookie) Clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure || r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}

// ReadSessionID returns the session cookie value, or "".
func ReadSessionID(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// SessionAuth returns middleware that requires a valid session cookie.
func SessionAuth(sessions SessionValidator, cookie SessionCookie) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ReadSessionID(r)
			if id == "" {
				jsonError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}

			if !sessions.Validate(id) {
				// Clear invalid cookie
				cookie.Clear(w, r)
				jsonError(w, http.StatusUnauthorized, "Session expired")
				return
			}

			ctx := context.WithValue(r.Context(), SessionIDKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionID retrieves the validated session ID from the context.
func GetSessionID(ctx context.Context) string {
	id, _ := ctx.Value(SessionIDKey{}).(string)
	return id
}
