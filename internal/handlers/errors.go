package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/abdul-hamid-achik/kiosk/internal/logging"
	"github.com/abdul-hamid-achik/kiosk/internal/vault"
)

// errorResponse is the body of every error response.
type errorResponse struct {
	Error             string `json:"error"`
	RemainingAttempts *int   `json:"remainingAttempts,omitempty"`
	LockoutSeconds    *int   `json:"lockoutSeconds,omitempty"`
}

// successResponse is returned by state-changing endpoints.
type successResponse struct {
	Success bool `json:"success"`
}

var okResponse = successResponse{Success: true}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, errorResponse{Error: message})
}

// decodeJSON reads the request body into dst and writes a 400 or 413 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		jsonError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return false
	}
	jsonError(w, http.StatusBadRequest, "Invalid JSON body")
	return false
}

// writeError maps a vault error to a status code. Unknown errors are logged
// and reported as 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, vault.ErrWrongPIN):
		jsonError(w, http.StatusUnauthorized, "Invalid PIN")
	case errors.Is(err, vault.ErrDecryption):
		jsonError(w, http.StatusUnauthorized, "Failed to decrypt config")
	case errors.Is(err, vault.ErrInvalidSetupCode):
		jsonError(w, http.StatusUnauthorized, "Invalid setup code")
	case errors.Is(err, vault.ErrSetupCodeExpired):
		jsonError(w, http.StatusUnauthorized, "Setup code expired")
	case errors.Is(err, vault.ErrSetupNotPending):
		jsonError(w, http.StatusBadRequest, "Setup already complete or not initialized")
	case errors.Is(err, vault.ErrAlreadySetup):
		jsonError(w, http.StatusBadRequest, "Setup already complete")
	case errors.Is(err, vault.ErrSetupIncomplete):
		jsonError(w, http.StatusBadRequest, "Setup not complete")
	case errors.Is(err, vault.ErrNotInitialized):
		jsonError(w, http.StatusConflict, "Kiosk is not configured")
	case errors.Is(err, vault.ErrConfigNotFound):
		jsonError(w, http.StatusNotFound, "Config not found")
	default:
		logging.Logger(r.Context()).Error(fallback, "error", err)
		jsonError(w, http.StatusInternalServerError, fallback)
	}
}

// NotFoundHandler handles 404 errors.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	jsonError(w, http.StatusNotFound, "Not found")
}

// MethodNotAllowedHandler handles 405 errors.
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	jsonError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
