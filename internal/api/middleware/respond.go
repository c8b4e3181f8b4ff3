package middleware

import (
	"encoding/json"
	"net/http"
)

// respondError writes the API envelope with success=false
func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}
