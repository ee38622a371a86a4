package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/catalog-sync/pkg/errors"
)

// maxErrorBody caps how much of an error response body is buffered.
const maxErrorBody = 1 << 20

// StatusError is returned by CircuitBreakerClient for 5xx responses. The
// response has already been closed; Body holds what was read from it.
type StatusError struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, string(e.Body))
}

// Unwrap lets errors.Is match the 5xx against ErrUpstream.
func (e *StatusError) Unwrap() error {
	return apperrors.ErrUpstream
}

// DownstreamErrorResponse covers the common JSON error envelope shape
// {"error": {"code": ..., "message": ...}} returned by upstream hosts.
type DownstreamErrorResponse struct {
	Error *struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	} `json:"error"`
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an appropriate AppError. If the response body matches the standard
// error envelope the message is preserved. Otherwise a generic error quoting
// the status code and raw body is returned.
//
// The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	var downstream DownstreamErrorResponse
	if json.Unmarshal(bodyBytes, &downstream) == nil && downstream.Error != nil && downstream.Error.Message != "" {
		return mapDownstreamError(resp.StatusCode, codeString(downstream.Error.Code), downstream.Error.Message, serviceName)
	}

	return mapDownstreamError(resp.StatusCode, "", fmt.Sprintf("status %d: %s", resp.StatusCode, string(bodyBytes)), serviceName)
}

// codeString accepts both string and numeric error codes.
func codeString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

// mapDownstreamError translates a downstream HTTP status and message into an
// AppError that preserves the error semantics.
func mapDownstreamError(status int, code, message, serviceName string) error {
	qualifiedMsg := fmt.Sprintf("%s: %s", serviceName, message)

	var appErr *apperrors.AppError
	switch {
	case status == http.StatusNotFound:
		appErr = apperrors.NotFound(serviceName, message)
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		appErr = apperrors.InvalidInput(qualifiedMsg)
	case status == http.StatusConflict:
		appErr = apperrors.Conflict(qualifiedMsg)
	case status == http.StatusUnauthorized:
		appErr = apperrors.Unauthorized(qualifiedMsg)
	case status == http.StatusForbidden:
		appErr = apperrors.Forbidden(qualifiedMsg)
	case status == http.StatusTooManyRequests:
		appErr = apperrors.RateLimited(qualifiedMsg)
	case status == http.StatusServiceUnavailable:
		appErr = apperrors.ServiceUnavailable(qualifiedMsg)
	default:
		appErr = apperrors.Upstream(qualifiedMsg)
	}
	if code != "" {
		appErr.Code = code
	}
	return appErr
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
