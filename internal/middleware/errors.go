package middleware

import (
	"encoding/json"
	"net/http"
)

// jsonError writes {"error": message} with the given status.
func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
