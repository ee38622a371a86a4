package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/catalog-sync/pkg/errors"
	"github.com/utafrali/catalog-sync/pkg/logger"
	"github.com/utafrali/catalog-sync/pkg/validator"
)

// Response is the standard JSON response envelope.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	Details   any               `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteErrorResponse writes body as the error payload, stamping the
// request's correlation id.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, status int, body ErrorResponse) {
	body.RequestID = logger.CorrelationIDFromContext(r.Context())
	WriteJSON(w, status, Response{Error: &body})
}

// sentinel maps a bare sentinel error to its public code and message.
type sentinel struct {
	err     error
	code    string
	message string
}

var sentinels = []sentinel{
	{apperrors.ErrNotFound, "NOT_FOUND", "resource not found"},
	{apperrors.ErrAlreadyExists, "ALREADY_EXISTS", "resource already exists"},
	{apperrors.ErrConflict, "CONFLICT", "resource state conflict"},
	{apperrors.ErrInvalidInput, "INVALID_INPUT", ""},
	{apperrors.ErrUnauthorized, "UNAUTHORIZED", "authentication required"},
	{apperrors.ErrForbidden, "FORBIDDEN", "access denied"},
	{apperrors.ErrRateLimited, "RATE_LIMITED", "too many requests"},
	{apperrors.ErrServiceUnavail, "SERVICE_UNAVAILABLE", "provider temporarily unavailable"},
	{apperrors.ErrUpstream, "UPSTREAM_ERROR", "provider request failed"},
}

// WriteError writes a standardized error response based on the error type.
// AppErrors carry their own code and status; bare sentinels are mapped by
// kind. Server-side failures are logged with the request-scoped logger
// when the RequestLogger middleware has set one, otherwise with fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() {
		l = fallback
	}

	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.Int("status", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		WriteErrorResponse(w, r, appErr.Status, ErrorResponse{Code: appErr.Code, Message: appErr.Message})
		return
	}

	body := ErrorResponse{Code: "INTERNAL_ERROR", Message: "an internal error occurred"}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			body.Code = s.code
			body.Message = s.message
			if body.Message == "" {
				body.Message = err.Error()
			}
			break
		}
	}
	WriteErrorResponse(w, r, status, body)
}

// WriteValidationError writes a standardized validation error response.
// It handles ValidationError from the validator package and returns field-level errors.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "request validation failed",
				Fields:  valErr.Fields(),
			},
		})
		return
	}

	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()},
	})
}

// RequireParam writes a 400 INVALID_PARAMETER response and returns false
// when value is empty.
func RequireParam(w http.ResponseWriter, name, value string) bool {
	if value != "" {
		return true
	}
	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{Code: "INVALID_PARAMETER", Message: name + " is required"},
	})
	return false
}
