package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/utafrali/catalog-sync/pkg/errors"
)

// ErrAuth matches, via errors.Is, any error caused by an invalid or expired
// credential. Callers use it to trigger re-authentication.
var ErrAuth = errors.New("graph: credential rejected")

// Provider error codes that mean the credential itself is unusable.
const (
	codeInvalidToken   = 190
	codeSessionInvalid = 102
	typeOAuth          = "OAuthException"
)

// ErrorDetail is the provider's {"error": {...}} payload.
type ErrorDetail struct {
	Message     string `json:"message"`
	Type        string `json:"type"`
	Code        int    `json:"code"`
	Subcode     int    `json:"error_subcode"`
	UserTitle   string `json:"error_user_title"`
	UserMessage string `json:"error_user_msg"`
	TraceID     string `json:"fbtrace_id"`
}

// IsAuth reports whether the payload is an auth-class error.
func (d ErrorDetail) IsAuth() bool {
	return d.Code == codeInvalidToken || d.Code == codeSessionInvalid || d.Type == typeOAuth
}

// APIError is a failed top-level Graph call.
type APIError struct {
	Status int
	Detail ErrorDetail
	// Raw holds the (truncated) response body when no structured payload
	// could be decoded.
	Raw string
}

func (e *APIError) Error() string {
	if e.Detail.Message != "" && e.Raw == "" {
		return fmt.Sprintf("graph api error (status %d, code %d, type %s): %s",
			e.Status, e.Detail.Code, e.Detail.Type, e.Detail.Message)
	}
	if e.Detail.Message != "" {
		return fmt.Sprintf("graph api error (status %d): %s: %s", e.Status, e.Detail.Message, e.Raw)
	}
	return fmt.Sprintf("graph api error: status %d: %s", e.Status, e.Raw)
}

// IsAuth reports whether the credential was rejected.
func (e *APIError) IsAuth() bool {
	return e.Status == http.StatusUnauthorized || e.Detail.IsAuth()
}

// Is matches ErrAuth for auth-class failures.
func (e *APIError) Is(target error) bool {
	return target == ErrAuth && e.IsAuth()
}

func (e *APIError) Unwrap() error {
	return apperrors.ErrUpstream
}

type errorEnvelope struct {
	Error *ErrorDetail `json:"error"`
}

// decodeErrorDetail extracts a provider error payload from body.
func decodeErrorDetail(body []byte) (ErrorDetail, bool) {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil || env.Error.Message == "" {
		return ErrorDetail{}, false
	}
	return *env.Error, true
}

// parseAPIError builds an APIError from a non-2xx response, falling back to
// the raw body when the provider payload is missing or malformed.
func parseAPIError(status int, body []byte) *APIError {
	if detail, ok := decodeErrorDetail(body); ok {
		return &APIError{Status: status, Detail: detail}
	}
	return &APIError{Status: status, Raw: truncate(string(body))}
}
