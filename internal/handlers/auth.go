package handlers

import (
	"errors"
	"net/http"

	"github.com/abdul-hamid-achik/kiosk/internal/kiosk"
	"github.com/abdul-hamid-achik/kiosk/internal/logging"
	"github.com/abdul-hamid-achik/kiosk/internal/metrics"
	"github.com/abdul-hamid-achik/kiosk/internal/middleware"
	"github.com/abdul-hamid-achik/kiosk/internal/ratelimit"
	"github.com/abdul-hamid-achik/kiosk/internal/session"
	"github.com/abdul-hamid-achik/kiosk/internal/validation"
	"github.com/abdul-hamid-achik/kiosk/internal/vault"
)

// pinGuard applies the per-address login limiter to every PIN or setup
// code check.
type pinGuard struct {
	vault   *vault.Vault
	limiter *ratelimit.Limiter
}

// reserve takes one attempt from addr's allowance before any PIN or code is
// checked. It writes a 429 and returns false while addr is locked out.
func (g pinGuard) reserve(w http.ResponseWriter, addr string) (ratelimit.Status, bool) {
	status := g.limiter.Reserve(addr)
	if status.Allowed {
		return status, true
	}
	lockout := status.LockoutSeconds
	jsonResponse(w, http.StatusTooManyRequests, errorResponse{
		Error:          "Too many failed attempts",
		LockoutSeconds: &lockout,
	})
	return status, false
}

// reject writes a 401 with the attempts left after the reserved failure.
func (g pinGuard) reject(w http.ResponseWriter, status ratelimit.Status, message string) {
	remaining := status.RemainingAttempts
	jsonResponse(w, http.StatusUnauthorized, errorResponse{
		Error:             message,
		RemainingAttempts: &remaining,
	})
}

// fail hands back the reserved attempt and writes the error response for a
// request that ended before the PIN was judged.
func (g pinGuard) fail(w http.ResponseWriter, r *http.Request, addr string, err error, fallback string) {
	g.limiter.Release(addr)
	writeError(w, r, err, fallback)
}

// check verifies the admin PIN and writes the error response on failure.
func (g pinGuard) check(w http.ResponseWriter, r *http.Request, pin string) bool {
	addr := middleware.ClientIP(r)
	status, ok := g.reserve(w, addr)
	if !ok {
		return false
	}

	valid, err := g.vault.VerifyPIN(pin)
	if err != nil {
		g.fail(w, r, addr, err, "Failed to verify PIN")
		return false
	}
	if !valid {
		g.reject(w, status, "Invalid PIN")
		return false
	}
	g.limiter.Record(addr, true)
	return true
}

// AuthHandler handles the setup and login endpoints.
type AuthHandler struct {
	vault    *vault.Vault
	sessions *session.Manager
	guard    pinGuard
	cookie   middleware.SessionCookie
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(v *vault.Vault, sessions *session.Manager, limiter *ratelimit.Limiter, cookie middleware.SessionCookie) *AuthHandler {
	return &AuthHandler{
		vault:    v,
		sessions: sessions,
		guard:    pinGuard{vault: v, limiter: limiter},
		cookie:   cookie,
	}
}

type setupStatusResponse struct {
	SetupComplete         bool   `json:"setupComplete"`
	RequiresFirstTimeCode bool   `json:"requiresFirstTimeCode"`
	FirstTimeCode         string `json:"firstTimeCode,omitempty"`
	CodeExpired           bool   `json:"codeExpired"`
}

type authStatusResponse struct {
	SetupComplete bool `json:"setupComplete"`
	Authenticated bool `json:"authenticated"`
}

// Status reports the setup state, or whether the caller holds a live session.
// Before setup the pending code is included so the kiosk screen can show it.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	record, err := h.vault.LoadAuth()
	if err != nil {
		writeError(w, r, err, "Failed to load auth status")
		return
	}

	if record == nil || !record.SetupComplete {
		resp := setupStatusResponse{}
		if record.HasPendingCode() {
			resp.RequiresFirstTimeCode = true
			resp.FirstTimeCode = record.FirstTimeCode
			resp.CodeExpired = h.vault.CodeExpired(record)
		}
		jsonResponse(w, http.StatusOK, resp)
		return
	}

	// Polling status must not keep an idle session alive.
	_, live := h.sessions.Get(middleware.ReadSessionID(r))
	jsonResponse(w, http.StatusOK, authStatusResponse{
		SetupComplete: true,
		Authenticated: live,
	})
}

type initSetupResponse struct {
	FirstTimeCode string `json:"firstTimeCode"`
	ExpiresIn     int    `json:"expiresIn"`
}

// InitSetup issues a new setup code, replacing any pending one.
func (h *AuthHandler) InitSetup(w http.ResponseWriter, r *http.Request) {
	code, _, err := h.vault.IssueSetupCode()
	if err != nil {
		writeError(w, r, err, "Failed to initialize setup")
		return
	}

	jsonResponse(w, http.StatusOK, initSetupResponse{
		FirstTimeCode: code,
		ExpiresIn:     int(h.vault.SetupCodeTTL().Seconds()),
	})
}

type completeSetupRequest struct {
	Code   string        `json:"code"`
	PIN    string        `json:"pin"`
	Config *kiosk.Config `json:"config"`
}

// CompleteSetup redeems the setup code, sets the PIN, stores the initial
// configuration and logs the caller in.
func (h *AuthHandler) CompleteSetup(w http.ResponseWriter, r *http.Request) {
	var req completeSetupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" || req.PIN == "" || req.Config == nil {
		jsonError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if err := validation.PIN(req.PIN); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Config.Normalize()
	if err := validation.Config(req.Config); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	addr := middleware.ClientIP(r)
	status, ok := h.guard.reserve(w, addr)
	if !ok {
		return
	}

	err := h.vault.CompleteSetup(req.Code, req.PIN, req.Config)
	switch {
	case errors.Is(err, vault.ErrInvalidSetupCode):
		h.guard.reject(w, status, "Invalid setup code")
		return
	case errors.Is(err, vault.ErrSetupCodeExpired):
		h.guard.reject(w, status, "Setup code expired")
		return
	case err != nil:
		h.guard.fail(w, r, addr, err, "Failed to complete setup")
		return
	}
	h.guard.limiter.Record(addr, true)

	if !h.startSession(w, r, addr, req.Config) {
		return
	}
	logging.Logger(r.Context()).Info("admin setup completed", "client_ip", addr)
	jsonResponse(w, http.StatusOK, okResponse)
}

type loginRequest struct {
	PIN string `json:"pin"`
}

// Login verifies the PIN, decrypts the configuration into a new session and
// sets the session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PIN == "" {
		jsonError(w, http.StatusBadRequest, "PIN required")
		return
	}

	complete, err := h.vault.IsSetupComplete()
	if err != nil {
		writeError(w, r, err, "Failed to load auth status")
		return
	}
	if !complete {
		jsonError(w, http.StatusBadRequest, "Setup not complete")
		return
	}

	addr := middleware.ClientIP(r)
	log := logging.Logger(r.Context()).With("client_ip", addr)

	status, ok := h.guard.reserve(w, addr)
	if !ok {
		metrics.LoginAttempts.WithLabelValues("locked").Inc()
		log.Warn("login rejected, address locked out")
		return
	}

	valid, err := h.vault.VerifyPIN(req.PIN)
	if err != nil {
		h.guard.fail(w, r, addr, err, "Failed to verify PIN")
		return
	}
	if !valid {
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		log.Warn("login failed", "remaining_attempts", status.RemainingAttempts)
		h.guard.reject(w, status, "Invalid PIN")
		return
	}
	h.guard.limiter.Record(addr, true)
	metrics.LoginAttempts.WithLabelValues("success").Inc()

	cfg, err := h.vault.LoadConfig(req.PIN)
	if err != nil {
		log.Error("failed to load config after login", "error", err)
		jsonError(w, http.StatusInternalServerError, "Failed to load config")
		return
	}

	if !h.startSession(w, r, addr, cfg) {
		return
	}
	log.Info("admin logged in")
	jsonResponse(w, http.StatusOK, okResponse)
}

// Logout destroys the caller's session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if id := middleware.ReadSessionID(r); id != "" {
		h.sessions.Destroy(id)
	}
	h.cookie.Clear(w, r)
	jsonResponse(w, http.StatusOK, okResponse)
}

type changePINRequest struct {
	CurrentPIN string `json:"currentPin"`
	NewPIN     string `json:"newPin"`
}

// ChangePIN re-encrypts the configuration under a new PIN. Every session is
// destroyed and the caller receives a fresh one.
func (h *AuthHandler) ChangePIN(w http.ResponseWriter, r *http.Request) {
	var req changePINRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CurrentPIN == "" || req.NewPIN == "" {
		jsonError(w, http.StatusBadRequest, "Current and new PIN required")
		return
	}
	if err := validation.PIN(req.NewPIN); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	addr := middleware.ClientIP(r)
	status, ok := h.guard.reserve(w, addr)
	if !ok {
		return
	}

	cfg, err := h.vault.ChangePIN(req.CurrentPIN, req.NewPIN)
	if errors.Is(err, vault.ErrWrongPIN) {
		h.guard.reject(w, status, "Invalid PIN")
		return
	}
	if err != nil {
		h.guard.fail(w, r, addr, err, "Failed to change PIN")
		return
	}
	h.guard.limiter.Record(addr, true)

	h.sessions.DestroyAll()
	if !h.startSession(w, r, addr, cfg) {
		return
	}
	logging.Logger(r.Context()).Info("admin PIN changed", "client_ip", addr)
	jsonResponse(w, http.StatusOK, okResponse)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, addr string, cfg *kiosk.Config) bool {
	id, err := h.sessions.Create(addr)
	if err != nil {
		logging.Logger(r.Context()).Error("failed to create session", "error", err)
		jsonError(w, http.StatusInternalServerError, "Failed to create session")
		return false
	}
	h.sessions.CacheConfig(id, cfg)
	h.cookie.Set(w, r, id)
	return true
}
