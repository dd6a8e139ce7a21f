package httphandler

import (
	"encoding/json"
	"net/http"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// ServiceListResponse is the JSON representation of the stored service names.
type ServiceListResponse struct {
	Services []string `json:"services"`
}

// PasswordResponse carries a decrypted password.
type PasswordResponse struct {
	Service  string `json:"service"`
	Password string `json:"password"`
}

// PutPasswordRequest is the JSON body for storing a password.
type PutPasswordRequest struct {
	Password string `json:"password"`
}

// GeneratedPasswordResponse carries a freshly generated password.
type GeneratedPasswordResponse struct {
	Password string `json:"password"`
	Length   int    `json:"length"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Vault  string `json:"vault"`
	Time   string `json:"time"`
}
