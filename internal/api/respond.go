package api

import (
	"encoding/json"
	"net/http"

	"docparse/internal/logger"
)

// httpError is an error with the status code it maps to.
type httpError struct {
	Status  int
	Message string
}

func (e *httpError) Error() string { return e.Message }

func badRequest(msg string) *httpError {
	return &httpError{Status: http.StatusBadRequest, Message: msg}
}

func notFound(msg string) *httpError {
	return &httpError{Status: http.StatusNotFound, Message: msg}
}

func unavailable(msg string) *httpError {
	return &httpError{Status: http.StatusServiceUnavailable, Message: msg}
}

func internalError(msg string) *httpError {
	return &httpError{Status: http.StatusInternalServerError, Message: msg}
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func respondRaw(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := http.StatusInternalServerError, "Internal server error"
	if e, ok := err.(*httpError); ok {
		status, message = e.Status, e.Message
	}

	logger.FromContext(r.Context()).Warn().
		Int("status", status).
		Str("error", message).
		Msg("Request error")

	respondJSON(w, r, status, errorBody{
		Error:     message,
		RequestID: w.Header().Get(RequestIDHeader),
	})
}
