package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/kiosk/internal/crypto"
	"github.com/abdul-hamid-achik/kiosk/internal/ratelimit"
)

func statusOf(t *testing.T, ts *testServer) map[string]any {
	t.Helper()
	rec := ts.do(http.MethodGet, "/api/auth/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", rec.Code)
	}
	var resp map[string]any
	decodeBody(t, rec, &resp)
	return resp
}

func issueCode(t *testing.T, ts *testServer) string {
	t.Helper()
	rec := ts.do(http.MethodPost, "/api/auth/init-setup", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("init-setup: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp initSetupResponse
	decodeBody(t, rec, &resp)
	return resp.FirstTimeCode
}

func TestStatus_FreshInstall(t *testing.T) {
	ts := newTestServer(t)

	resp := statusOf(t, ts)
	if resp["setupComplete"] != false {
		t.Errorf("setupComplete = %v", resp["setupComplete"])
	}
	if resp["requiresFirstTimeCode"] != false {
		t.Errorf("requiresFirstTimeCode = %v", resp["requiresFirstTimeCode"])
	}
	if resp["codeExpired"] != false {
		t.Errorf("codeExpired = %v", resp["codeExpired"])
	}
	if _, ok := resp["firstTimeCode"]; ok {
		t.Error("firstTimeCode present without a pending code")
	}
}

func TestInitSetup(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/auth/init-setup", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp initSetupResponse
	decodeBody(t, rec, &resp)

	if len(resp.FirstTimeCode) != crypto.SetupCodeLength {
		t.Errorf("code %q has length %d", resp.FirstTimeCode, len(resp.FirstTimeCode))
	}
	if resp.ExpiresIn != 900 {
		t.Errorf("expiresIn = %d, want 900", resp.ExpiresIn)
	}

	status := statusOf(t, ts)
	if status["requiresFirstTimeCode"] != true {
		t.Errorf("requiresFirstTimeCode = %v", status["requiresFirstTimeCode"])
	}
	if status["firstTimeCode"] != resp.FirstTimeCode {
		t.Errorf("firstTimeCode = %v, want %s", status["firstTimeCode"], resp.FirstTimeCode)
	}

	ts.clock.Advance(16 * time.Minute)
	if status := statusOf(t, ts); status["codeExpired"] != true {
		t.Errorf("codeExpired = %v after expiry", status["codeExpired"])
	}
}

func TestInitSetup_AfterSetup(t *testing.T) {
	ts := newTestServer(t)
	ts.setup("1234", sampleConfig())

	rec := ts.do(http.MethodPost, "/api/auth/init-setup", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := errorBody(t, rec).Error; got != "Setup already complete" {
		t.Errorf("error = %q", got)
	}
}

func TestCompleteSetup_BadRequest(t *testing.T) {
	ts := newTestServer(t)
	code := issueCode(t, ts)

	invalidConfig := sampleConfig()
	invalidConfig.Location.Latitude = 91

	tests := []struct {
		name    string
		body    map[string]any
		wantErr string
	}{
		{
			name:    "missing code",
			body:    map[string]any{"pin": "1234", "config": sampleConfig()},
			wantErr: "Missing required fields",
		},
		{
			name:    "missing config",
			body:    map[string]any{"code": code, "pin": "1234"},
			wantErr: "Missing required fields",
		},
		{
			name:    "pin too short",
			body:    map[string]any{"code": code, "pin": "123", "config": sampleConfig()},
			wantErr: "PIN must be 4-8 digits",
		},
		{
			name:    "pin not numeric",
			body:    map[string]any{"code": code, "pin": "12a4", "config": sampleConfig()},
			wantErr: "PIN must be 4-8 digits",
		},
		{
			name:    "invalid config",
			body:    map[string]any{"code": code, "pin": "1234", "config": invalidConfig},
			wantErr: "latitude must be between -90 and 90",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/api/auth/complete-setup", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if got := errorBody(t, rec).Error; got != tt.wantErr {
				t.Errorf("error = %q, want %q", got, tt.wantErr)
			}
		})
	}

	if status := statusOf(t, ts); status["setupComplete"] != false {
		t.Error("setup completed by an invalid request")
	}
}

func TestCompleteSetup_NotInitialized(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/auth/complete-setup", map[string]any{
		"code": "ABCDEF", "pin": "1234", "config": sampleConfig(),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := errorBody(t, rec).Error; got != "Setup already complete or not initialized" {
		t.Errorf("error = %q", got)
	}
}

func TestCompleteSetup_InvalidCode(t *testing.T) {
	ts := newTestServer(t)
	code := issueCode(t, ts)

	wrong := "ZZZZZZ"
	if code == wrong {
		wrong = "YYYYYY"
	}
	rec := ts.do(http.MethodPost, "/api/auth/complete-setup", map[string]any{
		"code": wrong, "pin": "1234", "config": sampleConfig(),
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	resp := errorBody(t, rec)
	if resp.Error != "Invalid setup code" {
		t.Errorf("error = %q", resp.Error)
	}
	if resp.RemainingAttempts == nil || *resp.RemainingAttempts != 4 {
		t.Errorf("remainingAttempts = %v, want 4", resp.RemainingAttempts)
	}
	if ts.cookie != nil {
		t.Error("session cookie set for an invalid code")
	}

	// The pending code is still redeemable.
	rec = ts.do(http.MethodPost, "/api/auth/complete-setup", map[string]any{
		"code": code, "pin": "1234", "config": sampleConfig(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with the real code, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCompleteSetup_ExpiredCode(t *testing.T) {
	ts := newTestServer(t)
	code := issueCode(t, ts)

	ts.clock.Advance(15*time.Minute + time.Second)

	rec := ts.do(http.MethodPost, "/api/auth/complete-setup", map[string]any{
		"code": code, "pin": "1234", "config": sampleConfig(),
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := errorBody(t, rec).Error; got != "Setup code expired" {
		t.Errorf("error = %q", got)
	}

	record, err := ts.vault.LoadAuth()
	if err != nil {
		t.Fatalf("LoadAuth: %v", err)
	}
	if record.SetupComplete || record.FirstTimeCode != code {
		t.Errorf("auth record changed after expired code: %+v", record)
	}
}

func TestCompleteSetup_CodeValidUntilExpiry(t *testing.T) {
	ts := newTestServer(t)
	code := issueCode(t, ts)

	ts.clock.Advance(15 * time.Minute)

	rec := ts.do(http.MethodPost, "/api/auth/complete-setup", map[string]any{
		"code": code, "pin": "1234", "config": sampleConfig(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 at the expiry instant, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCompleteSetup_SetsSessionCookie(t *testing.T) {
	ts := newTestServer(t)
	ts.setup("1234", sampleConfig())

	c := ts.cookie
	if c == nil {
		t.Fatal("expected session cookie")
	}
	if !c.HttpOnly {
		t.Error("cookie is not HttpOnly")
	}
	if c.SameSite != http.SameSiteStrictMode {
		t.Errorf("SameSite = %v, want Strict", c.SameSite)
	}
	if c.Path != "/" {
		t.Errorf("Path = %q", c.Path)
	}
	if c.MaxAge != 7*24*60*60 {
		t.Errorf("MaxAge = %d, want 7 days", c.MaxAge)
	}
	if len(c.Value) != 2*crypto.SessionTokenSize {
		t.Errorf("session id length = %d", len(c.Value))
	}

	status := statusOf(t, ts)
	if status["setupComplete"] != true || status["authenticated"] != true {
		t.Errorf("status = %v", status)
	}
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	ts.setup("1234", sampleConfig())
	ts.cookie = nil

	rec := ts.do(http.MethodPost, "/api/auth/login", map[string]string{"pin": "0000"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong PIN: expected 401, got %d", rec.Code)
	}
	resp := errorBody(t, rec)
	if resp.Error != "Invalid PIN" {
		t.Errorf("error = %q", resp.Error)
	}
	if resp.RemainingAttempts == nil || *resp.RemainingAttempts != 4 {
		t.Errorf("remainingAttempts = %v, want 4", resp.RemainingAttempts)
	}
	if ts.cookie != nil {
		t.Fatal("cookie set after a failed login")
	}

	rec = ts.do(http.MethodPost, "/api/auth/login", map[string]string{"pin": "1234"})
	if rec.Code != http.StatusOK {
		t.Fatalf("correct PIN: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ts.cookie == nil {
		t.Fatal("expected session cookie after login")
	}

	if got := ts.limiter.Check("192.0.2.10").RemainingAttempts; got != 5 {
		t.Errorf("failures not cleared by successful login, remaining = %d", got)
	}
}

func TestLogin_BadRequest(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/auth/login", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing PIN: expected 400, got %d", rec.Code)
	}
	if got := errorBody(t, rec).Error; got != "PIN required" {
		t.Errorf("error = %q", got)
	}

	rec = ts.do(http.MethodPost, "/api/auth/login", map[string]string{"pin": "1234"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("before setup: expected 400, got %d", rec.Code)
	}
	if got := errorBody(t, rec).Error; got != "Setup not complete" {
		t.Errorf("error = %q", got)
	}
}

func TestLogin_Lockout(t *testing.T) {
	ts := newTestServer(t)
	ts.setup("1234", sampleConfig())
	ts.cookie = nil

	for i := 1; i <= 5; i++ {
		rec := ts.do(http.MethodPost, "/api/auth/login", map[string]string{"pin": "9999"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, rec.Code)
		}
		resp := errorBody(t, rec)
		if resp.RemainingAttempts == nil || *resp.RemainingAttempts != 5-i {
			t.Fatalf("attempt %d: remainingAttempts = %v, want %d", i, resp.RemainingAttempts, 5-i)
		}
	}

	// Locked out, even with the correct PIN.
	rec := ts.do(http.MethodPost, "/api/auth/login", map[string]string{"pin": "1234"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	resp := errorBody(t, rec)
	if resp.Error != "Too many failed attempts" {
		t.Errorf("error = %q", resp.Error)
	}
	if resp.LockoutSeconds == nil || *resp.LockoutSeconds != 300 {
		t.Errorf("lockoutSeconds = %v, want 300", resp.LockoutSeconds)
	}

	ts.clock.Advance(2 * time.Minute)
	rec = ts.do(http.MethodPost, "/api/auth/login", map[string]string{"pin": "1234"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 during lockout, got %d", rec.Code)
	}
	if resp := errorBody(t, rec); resp.LockoutSeconds == nil || *resp.LockoutSeconds != 180 {
		t.Errorf("lockoutSeconds = %v, want 180", resp.LockoutSeconds)
	}

	ts.clock.Advance(3 * time.Minute)
	rec = ts.do(http.MethodPost, "/api/auth/login", map[string]string{"pin": "1234"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after lockout, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t)
	ts.setup("1234", sampleConfig())
	stale := ts.cookie

	rec := ts.do(http.MethodPost, "/api/auth/logout", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ts.cookie != nil {
		t.Error("cookie not cleared")
	}
	if ts.sessions.Count() != 0 {
		t.Errorf("sessions = %d after logout", ts.sessions.Count())
	}

	ts.cookie = stale
	if status := statusOf(t, ts); status["authenticated"] != false {
		t.Errorf("authenticated = %v with a destroyed session", status["authenticated"])
	}
	rec = ts.do(http.MethodGet, "/api/config", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/config: expected 401, got %d", rec.Code)
	}
}

func TestStatus_SessionExpires(t *testing.T) {
	ts := newTestServer(t)
	ts.setup("1234", sampleConfig())

	ts.clock.Advance(2*time.Hour + time.Second)
	if status := statusOf(t, ts); status["authenticated"] != false {
		t.Errorf("authenticated = %v after idle timeout", status["authenticated"])
	}
}

func TestChangePIN(t *testing.T) {
	ts := newTestServer(t)
	ts.setup("1234", sampleConfig())
	oldCookie := ts.cookie

	rec := ts.do(http.MethodPost, "/api/auth/change-pin", map[string]string{"currentPin": "1234", "newPin": "12"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid new PIN: expected 400, got %d", rec.Code)
	}

	rec = ts.do(http.MethodPost, "/api/auth/change-pin", map[string]string{"currentPin": "0000", "newPin": "5678"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong current PIN: expected 401, got %d", rec.Code)
	}

	rec = ts.do(http.MethodPost, "/api/auth/change-pin", map[string]string{"currentPin": "1234", "newPin": "5678"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ts.cookie == nil || ts.cookie.Value == oldCookie.Value {
		t.Fatal("expected a fresh session cookie")
	}
	if ts.sessions.Validate(oldCookie.Value) {
		t.Error("old session survived a PIN change")
	}

	rec = ts.do(http.MethodGet, "/api/config", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/config with new session: %d", rec.Code)
	}

	ts.cookie = nil
	if rec := ts.do(http.MethodPost, "/api/auth/login", map[string]string{"pin": "1234"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("old PIN: expected 401, got %d", rec.Code)
	}
	if rec := ts.do(http.MethodPost, "/api/auth/login", map[string]string{"pin": "5678"}); rec.Code != http.StatusOK {
		t.Errorf("new PIN: expected 200, got %d", rec.Code)
	}
}

func TestLogin_ConcurrentGuessesHitLockout(t *testing.T) {
	ts := newTestServer(t)
	ts.setup("1234", sampleConfig())

	const guesses = 40
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		counts = make(map[int]int)
	)
	for i := 0; i < guesses; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"pin":"9999"}`))
			req.RemoteAddr = testClientAddr
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			ts.handler.ServeHTTP(rec, req)

			mu.Lock()
			counts[rec.Code]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if counts[http.StatusUnauthorized] != ratelimit.DefaultMaxAttempts {
		t.Errorf("PIN checked %d times, want %d: %v", counts[http.StatusUnauthorized], ratelimit.DefaultMaxAttempts, counts)
	}
	if counts[http.StatusTooManyRequests] != guesses-ratelimit.DefaultMaxAttempts {
		t.Errorf("429 responses = %d, want %d: %v", counts[http.StatusTooManyRequests], guesses-ratelimit.DefaultMaxAttempts, counts)
	}

	ts.cookie = nil
	if rec := ts.do(http.MethodPost, "/api/auth/login", map[string]string{"pin": "1234"}); rec.Code != http.StatusTooManyRequests {
		t.Errorf("correct PIN during lockout: expected 429, got %d", rec.Code)
	}
}

func TestStepUp_ConcurrentGuessesHitLockout(t *testing.T) {
	ts := newTestServer(t)
	ts.setup("1234", sampleConfig())
	cookie := ts.cookie

	const guesses = 20
	var (
		wg           sync.WaitGroup
		unauthorized atomic.Int32
	)
	for i := 0; i < guesses; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/config/factory-reset", strings.NewReader(`{"pin":"0000"}`))
			req.RemoteAddr = testClientAddr
			req.Header.Set("Content-Type", "application/json")
			req.AddCookie(cookie)
			rec := httptest.NewRecorder()
			ts.handler.ServeHTTP(rec, req)
			if rec.Code == http.StatusUnauthorized {
				unauthorized.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := int(unauthorized.Load()); got != ratelimit.DefaultMaxAttempts {
		t.Errorf("PIN checked %d times, want %d", got, ratelimit.DefaultMaxAttempts)
	}
	if status := statusOf(t, ts); status["setupComplete"] != true {
		t.Error("factory reset went through")
	}
}

func TestStatus_DoesNotRefreshSession(t *testing.T) {
	ts := newTestServer(t)
	ts.setup("1234", sampleConfig())

	ts.clock.Advance(time.Hour)
	if status := statusOf(t, ts); status["authenticated"] != true {
		t.Fatalf("authenticated = %v within the idle window", status["authenticated"])
	}

	ts.clock.Advance(time.Hour + time.Second)
	if status := statusOf(t, ts); status["authenticated"] != false {
		t.Errorf("authenticated = %v, status polling kept the session alive", status["authenticated"])
	}
	if rec := ts.do(http.MethodGet, "/api/config", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/config: expected 401, got %d", rec.Code)
	}
}
