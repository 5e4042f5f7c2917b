package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	apperrors "github.com/ahava-health/ahava-api/internal/errors"
	"github.com/ahava-health/ahava-api/internal/service"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

const (
	msgUnauthorized   = "Unauthorized"
	msgForbidden      = "Forbidden"
	msgInternal       = "Internal server error"
	msgInvalidJSON    = "Invalid request body"
	msgTooManyRequest = "Too many requests"
)

// DecodeJSON decodes JSON from the request body into the destination and handles errors.
// Returns true if successful, false if there was an error (error response already written).
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, Error: msgInvalidJSON})
		return false
	}

	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams describes a JSON error body: {"error": ..., "message": ..., "field": ..., "details": [...]}.
type ErrorParams struct {
	Code    int      `json:"-"`
	Error   string   `json:"error"`
	Message string   `json:"message,omitempty"`
	Field   string   `json:"field,omitempty"`
	Details []string `json:"details,omitempty"`
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, p)
}

// StatusForError maps an application error to its HTTP status. Unknown errors are 500.
func StatusForError(err error) int {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden
	case apperrors.ErrCodeValidation, apperrors.ErrCodeForeignKey:
		return http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict:
		return http.StatusConflict
	case apperrors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError renders err with the status from StatusForError. Server-side failures are
// logged and rendered with a generic message so store details never reach the client.
func writeAppError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := StatusForError(err)
	if code >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
			"error", err,
		)
		WriteError(w, ErrorParams{Code: code, Error: msgInternal})
		return
	}

	p := ErrorParams{Code: code, Error: http.StatusText(code)}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		p.Error = appErr.Message
		p.Field = appErr.Field
	}
	var weak *service.WeakPasswordError
	if errors.As(err, &weak) {
		p.Details = weak.Violations
	}
	WriteError(w, p)
}
