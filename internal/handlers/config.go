package handlers

import (
	"net/http"

	"github.com/abdul-hamid-achik/kiosk/internal/kiosk"
	"github.com/abdul-hamid-achik/kiosk/internal/logging"
	"github.com/abdul-hamid-achik/kiosk/internal/middleware"
	"github.com/abdul-hamid-achik/kiosk/internal/ratelimit"
	"github.com/abdul-hamid-achik/kiosk/internal/session"
	"github.com/abdul-hamid-achik/kiosk/internal/validation"
	"github.com/abdul-hamid-achik/kiosk/internal/vault"
)

// ConfigHandler serves the dashboard configuration.
type ConfigHandler struct {
	vault    *vault.Vault
	sessions *session.Manager
	guard    pinGuard
	cookie   middleware.SessionCookie
}

// NewConfigHandler creates a new ConfigHandler.
func NewConfigHandler(v *vault.Vault, sessions *session.Manager, limiter *ratelimit.Limiter, cookie middleware.SessionCookie) *ConfigHandler {
	return &ConfigHandler{
		vault:    v,
		sessions: sessions,
		guard:    pinGuard{vault: v, limiter: limiter},
		cookie:   cookie,
	}
}

// GetConfig returns the configuration cached in the caller's session. The
// PIN is not kept, so a session without a cached copy has to log in again.
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetSessionID(r.Context())
	cfg := h.sessions.Config(id)
	if cfg == nil {
		h.sessions.Destroy(id)
		h.cookie.Clear(w, r)
		jsonError(w, http.StatusUnauthorized, "Config not found in session")
		return
	}
	jsonResponse(w, http.StatusOK, cfg)
}

// GetPublicConfig returns the non-secret projection, or the defaults before
// setup.
func (h *ConfigHandler) GetPublicConfig(w http.ResponseWriter, r *http.Request) {
	pub, err := h.vault.LoadPublicConfig()
	if err != nil {
		writeError(w, r, err, "Failed to load public config")
		return
	}
	if pub == nil {
		pub = kiosk.DefaultPublic()
	}
	jsonResponse(w, http.StatusOK, pub)
}

type updateConfigRequest struct {
	Config *kiosk.Config `json:"config"`
	PIN    string        `json:"pin"`
}

// UpdateConfig re-encrypts and stores a new configuration. The PIN is
// required again even though the caller holds a session.
func (h *ConfigHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req updateConfigRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Config == nil || req.PIN == "" {
		jsonError(w, http.StatusBadRequest, "Config and PIN required")
		return
	}
	req.Config.Normalize()
	if err := validation.Config(req.Config); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !h.guard.check(w, r, req.PIN) {
		return
	}

	if err := h.vault.SaveConfig(req.Config, req.PIN); err != nil {
		writeError(w, r, err, "Failed to save config")
		return
	}
	h.sessions.CacheConfig(middleware.GetSessionID(r.Context()), req.Config)

	logging.Logger(r.Context()).Info("config updated")
	jsonResponse(w, http.StatusOK, okResponse)
}

type factoryResetRequest struct {
	PIN string `json:"pin"`
}

// FactoryReset deletes the PIN and the configuration and ends every session.
// The machine secret survives.
func (h *ConfigHandler) FactoryReset(w http.ResponseWriter, r *http.Request) {
	var req factoryResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PIN == "" {
		jsonError(w, http.StatusBadRequest, "PIN required")
		return
	}

	if !h.guard.check(w, r, req.PIN) {
		return
	}

	if err := h.vault.DeleteAll(); err != nil {
		writeError(w, r, err, "Failed to reset")
		return
	}
	h.sessions.DestroyAll()
	h.cookie.Clear(w, r)

	logging.Logger(r.Context()).Warn("factory reset performed", "client_ip", middleware.ClientIP(r))
	jsonResponse(w, http.StatusOK, okResponse)
}
