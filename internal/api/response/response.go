package response

import (
	"encoding/json"
	"net/http"
)

// APIResponse is the standard API response wrapper
type APIResponse struct {
	OK    bool        `json:"ok"`
	Text  string      `json:"text,omitempty"`
	Error string      `json:"error,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Log error but don't try to write again
			return
		}
	}
}

// OK writes a 200 response with ok=true and the generated text
func OK(w http.ResponseWriter, text string) {
	JSON(w, http.StatusOK, APIResponse{OK: true, Text: text})
}

// Error writes an error response with ok=false and a machine-readable code
func Error(w http.ResponseWriter, status int, code string) {
	JSON(w, status, APIResponse{OK: false, Error: code})
}

// AuthRequired writes the 401 response for missing or invalid sessions
func AuthRequired(w http.ResponseWriter) {
	Error(w, http.StatusUnauthorized, "auth_required")
}

// Paywall writes the 402 response for exhausted free-tier quota
func Paywall(w http.ResponseWriter) {
	Error(w, http.StatusPaymentRequired, "paywall")
}

// InternalError writes a 500 internal server error response
func InternalError(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Internal server error"
	}
	JSON(w, http.StatusInternalServerError, map[string]interface{}{
		"ok":      false,
		"error":   "server_error",
		"message": message,
	})
}

// TooManyRequests writes a 429 rate limit exceeded response
func TooManyRequests(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Rate limit exceeded"
	}
	JSON(w, http.StatusTooManyRequests, map[string]interface{}{
		"ok":      false,
		"error":   "rate_limited",
		"message": message,
	})
}

// PlainText writes a text/plain response. The Payhip webhook contract uses
// plain bodies ("ok", "bad signature") rather than JSON.
func PlainText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}
