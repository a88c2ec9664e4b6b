package api

import (
	"encoding/json"
	"net/http"
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError reports an unknown user or conversation.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ConflictError reports a uniqueness clash such as a taken username.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// writeError maps err onto the status code of its class. Anything outside the
// taxonomy is written as status with message.
func writeError(w http.ResponseWriter, err error, status int, message string) {
	resp := errorResponse{Error: message}
	switch e := err.(type) {
	case *ValidationError:
		status = http.StatusBadRequest
		resp = errorResponse{Error: e.Message, Fields: e.Fields}
	case *ConflictError:
		status = http.StatusBadRequest
		resp.Error = e.Message
	case *NotFoundError:
		status = http.StatusNotFound
		resp.Error = e.Message
	}
	writeJSON(w, status, resp)
}
