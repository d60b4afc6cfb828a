package middleware

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// mockSessions implements SessionValidator for testing.
type mockSessions struct {
	valid map[string]bool
	calls int
}

func (m *mockSessions) Validate(id string) bool {
	m.calls++
	return m.valid[id]
}

func echoSessionHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetSessionID(r.Context())))
	})
}

func TestSessionAuth_MissingCookie(t *testing.T) {
	sessions := &mockSessions{}
	handler := SessionAuth(sessions, SessionCookie{MaxAge: time.Hour})(echoSessionHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if sessions.calls != 0 {
		t.Error("Validate should not be called without a cookie")
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["error"] != "Not authenticated" {
		t.Errorf("error = %q, want %q", resp["error"], "Not authenticated")
	}
}

func TestSessionAuth_InvalidSession(t *testing.T) {
	sessions := &mockSessions{valid: map[string]bool{}}
	handler := SessionAuth(sessions, SessionCookie{MaxAge: time.Hour})(echoSessionHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "stale"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != SessionCookieName || cookies[0].MaxAge >= 0 {
		t.Errorf("expected cleared session cookie, got %+v", cookies)
	}
}

func TestSessionAuth_ValidSession(t *testing.T) {
	sessions := &mockSessions{valid: map[string]bool{"abc123": true}}
	handler := SessionAuth(sessions, SessionCookie{MaxAge: time.Hour})(echoSessionHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "abc123"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Body.String(); got != "abc123" {
		t.Errorf("session id in context = %q, want abc123", got)
	}
}

func TestSessionCookie_Set(t *testing.T) {
	tests := []struct {
		name       string
		secure     bool
		tls        bool
		wantSecure bool
	}{
		{name: "plain http", wantSecure: false},
		{name: "tls", tls: true, wantSecure: true},
		{name: "forced secure", secure: true, wantSecure: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}
			w := httptest.NewRecorder()

			SessionCookie{MaxAge: 7 * 24 * time.Hour, Secure: tt.secure}.Set(w, req, "token")

			cookies := w.Result().Cookies()
			if len(cookies) != 1 {
				t.Fatalf("got %d cookies, want 1", len(cookies))
			}
			c := cookies[0]
			if c.Name != SessionCookieName || c.Value != "token" {
				t.Errorf("cookie = %s=%s", c.Name, c.Value)
			}
			if !c.HttpOnly {
				t.Error("cookie should be HttpOnly")
			}
			if c.SameSite != http.SameSiteStrictMode {
				t.Errorf("SameSite = %v, want Strict", c.SameSite)
			}
			if c.Path != "/" {
				t.Errorf("Path = %q, want /", c.Path)
			}
			if c.MaxAge != 604800 {
				t.Errorf("MaxAge = %d, want 604800", c.MaxAge)
			}
			if c.Secure != tt.wantSecure {
				t.Errorf("Secure = %v, want %v", c.Secure, tt.wantSecure)
			}
		})
	}
}

func TestGetSessionID_EmptyContext(t *testing.T) {
	if got := GetSessionID(context.Background()); got != "" {
		t.Errorf("GetSessionID() with empty context = %q, want empty", got)
	}
}

func TestReadSessionID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := ReadSessionID(req); got != "" {
		t.Errorf("ReadSessionID() without cookie = %q", got)
	}
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "v"})
	if got := ReadSessionID(req); got != "v" {
		t.Errorf("ReadSessionID() = %q, want v", got)
	}
}
