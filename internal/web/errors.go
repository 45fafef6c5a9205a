package web

// errors.go provides unified error response handling for the web layer.
// Technical errors are logged with the request ID for correlation;
// clients receive a coded user-facing message from batch.MapError.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/adisetya/qrbatch/internal/batch"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs the technical error server-side and writes the
// user-facing mapping as JSON.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := batch.MapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	writeJSONStatus(w, statusCode, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// logRequestError records a non-fatal handler error with the request ID
// without changing the response.
func logRequestError(r *http.Request, msg string, err error) {
	slog.Error(msg,
		"path", r.URL.Path,
		"error", err,
		"request_id", middleware.GetReqID(r.Context()),
	)
}

// statusForError picks the HTTP status that matches an error from the
// batch pipeline.
func statusForError(err error) int {
	switch {
	case errors.Is(err, batch.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, batch.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, batch.ErrTooManyBatches):
		return http.StatusTooManyRequests
	case errors.Is(err, batch.ErrSignatureRequired), errors.Is(err, batch.ErrBadSignature):
		return http.StatusForbidden
	case errors.Is(err, batch.ErrEmptyFile),
		errors.Is(err, batch.ErrMalformedSpreadsheet),
		errors.Is(err, batch.ErrMalformedText),
		errors.Is(err, batch.ErrUnsupportedFormat),
		errors.Is(err, batch.ErrMissingColumns):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v as JSON with a 200 status.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes v as JSON with the given status. Encoding
// errors are logged since headers are already sent.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode response", "error", err)
	}
}
