// Package api provides the read-only HTTP handlers over the smilecast store.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ayusman/smilecast/internal/store"
)

// MaxLimit caps the limit query parameter.
const MaxLimit = 500

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// parseLimit reads ?limit=, defaulting to store.DefaultListLimit.
func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return store.DefaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > MaxLimit {
		n = MaxLimit
	}
	return n, true
}
