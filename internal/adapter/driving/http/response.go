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

// PasswordResponse is the body of the credential access endpoint. Password is
// only set on success; Message only on failure.
type PasswordResponse struct {
	Success  bool   `json:"success"`
	Password string `json:"password,omitempty"`
	Message  string `json:"message,omitempty"`
}

// SetPasswordRequest is the JSON body for the set password endpoint. An empty
// password clears the stored secret.
type SetPasswordRequest struct {
	Password *string `json:"password"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// Messages returned by the credential access endpoint. They never echo input.
const (
	msgInvalidRequest  = "invalid request"
	msgNoPassword      = "no password stored"
	msgRetrieveFailed  = "could not retrieve credential"
	msgServerConfig    = "server configuration error"
	msgForbidden       = "forbidden"
	msgUnauthenticated = "authentication required"
)

func writePasswordFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, PasswordResponse{Success: false, Message: message})
}
