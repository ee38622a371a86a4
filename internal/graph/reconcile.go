package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/utafrali/catalog-sync/pkg/errors"
)

// Failure describes one failed sub-operation.
type Failure struct {
	Index   int    `json:"index"`
	Key     string `json:"key"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    int    `json:"code,omitempty"`
	Subcode int    `json:"subcode,omitempty"`
	Auth    bool   `json:"auth,omitempty"`
}

// Success describes one sub-operation that the provider applied. ID is the
// object id from the response body, when it carries one.
type Success struct {
	Index int    `json:"index"`
	Key   string `json:"key"`
	ID    string `json:"id,omitempty"`
}

// BatchError aggregates every failed position of a batch. Operations that
// succeeded are not rolled back and are listed in Succeeded.
type BatchError struct {
	Total       int
	Failures    []Failure
	Succeeded   []Success
	AuthFailure bool
}

func (e *BatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d operations failed", len(e.Failures), e.Total)
	for i, f := range e.Failures {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "[%d] %s: %s", f.Index, f.Key, f.Message)
		if f.Code != 0 {
			fmt.Fprintf(&b, " (code %d)", f.Code)
		}
	}
	return b.String()
}

// Is matches ErrAuth when any sub-operation failed on the credential.
func (e *BatchError) Is(target error) bool {
	return target == ErrAuth && e.AuthFailure
}

func (e *BatchError) Unwrap() error {
	return apperrors.ErrUpstream
}

// FailedKeys returns the keys of the failed operations in input order.
func (e *BatchError) FailedKeys() []string {
	keys := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		keys[i] = f.Key
	}
	return keys
}

// FailedIndexes returns the input positions of the failed operations.
func (e *BatchError) FailedIndexes() []int {
	idx := make([]int, len(e.Failures))
	for i, f := range e.Failures {
		idx[i] = f.Index
	}
	return idx
}

// Reconcile correlates results with their inputs by position. keys[i]
// identifies input i in failure descriptors. The returned bodies slice
// always has len(results) entries with nil at failed positions; the error
// is a *BatchError when at least one position failed. A 2xx body with
// "success": false counts as a failure.
func Reconcile(results []BatchResult, keys []string) ([]json.RawMessage, error) {
	bodies := make([]json.RawMessage, len(results))
	var (
		failures  []Failure
		succeeded []Success
	)
	auth := false

	for i, r := range results {
		if r.OK() && !WriteRejected(r.Body) {
			bodies[i] = r.Body
			succeeded = append(succeeded, Success{Index: i, Key: keyAt(keys, i), ID: objectID(r.Body)})
			continue
		}
		f := describeFailure(i, keyAt(keys, i), r)
		auth = auth || f.Auth
		failures = append(failures, f)
	}

	if len(failures) == 0 {
		return bodies, nil
	}
	return bodies, &BatchError{Total: len(results), Failures: failures, Succeeded: succeeded, AuthFailure: auth}
}

// WriteRejected reports whether body is a write acknowledgement with
// "success": false.
func WriteRejected(body []byte) bool {
	var ack struct {
		Success *bool `json:"success"`
	}
	return json.Unmarshal(body, &ack) == nil && ack.Success != nil && !*ack.Success
}

func objectID(body []byte) string {
	var ref struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(body, &ref) != nil {
		return ""
	}
	return ref.ID
}

func describeFailure(index int, key string, r BatchResult) Failure {
	f := Failure{Index: index, Key: key, Status: r.Code}

	switch {
	case r.Err != nil:
		f.Message = r.Err.Error()
		f.Auth = errors.Is(r.Err, ErrAuth)
		var apiErr *APIError
		if errors.As(r.Err, &apiErr) {
			f.Type = apiErr.Detail.Type
			f.Code = apiErr.Detail.Code
			f.Subcode = apiErr.Detail.Subcode
		}
		return f
	case r.Missing:
		f.Message = "no response for operation"
		if r.RawBody != "" {
			f.Message += ": " + r.RawBody
		}
		return f
	case r.Body == nil && r.Code >= 200 && r.Code < 300:
		f.Message = "malformed response body: " + truncate(r.RawBody)
		return f
	case r.OK():
		f.Message = "provider did not accept the operation"
		return f
	}

	if detail, ok := decodeErrorDetail([]byte(r.RawBody)); ok {
		f.Message = detail.Message
		if detail.UserMessage != "" {
			f.Message += ": " + detail.UserMessage
		}
		f.Type = detail.Type
		f.Code = detail.Code
		f.Subcode = detail.Subcode
		f.Auth = detail.IsAuth() || r.Code == http.StatusUnauthorized
		return f
	}

	f.Message = fmt.Sprintf("status %d: %s", r.Code, truncate(r.RawBody))
	f.Auth = r.Code == http.StatusUnauthorized
	return f
}

func keyAt(keys []string, i int) string {
	if i < len(keys) && keys[i] != "" {
		return keys[i]
	}
	return "#" + strconv.Itoa(i)
}
