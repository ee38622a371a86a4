package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// BatchOperation is one sub-request inside a batch envelope.
type BatchOperation struct {
	Method      string
	RelativeURL string
	Body        url.Values
}

// NewOperation builds a BatchOperation, encoding params with EncodeParams.
func NewOperation(method, relativeURL string, params map[string]any) (BatchOperation, error) {
	op := BatchOperation{Method: method, RelativeURL: strings.TrimLeft(relativeURL, "/")}
	if len(params) == 0 {
		return op, nil
	}
	body, err := EncodeParams(params)
	if err != nil {
		return BatchOperation{}, fmt.Errorf("encode %s %s: %w", method, relativeURL, err)
	}
	op.Body = body
	return op, nil
}

// EncodeParams flattens params into form values. Scalars are written as
// text; slices, maps and structs are JSON-encoded. Nil values are skipped.
func EncodeParams(params map[string]any) (url.Values, error) {
	values := make(url.Values, len(params))
	for k, v := range params {
		switch tv := v.(type) {
		case nil:
			continue
		case string:
			values.Set(k, tv)
		case bool:
			values.Set(k, strconv.FormatBool(tv))
		case int:
			values.Set(k, strconv.Itoa(tv))
		case int64:
			values.Set(k, strconv.FormatInt(tv, 10))
		case float64:
			values.Set(k, strconv.FormatFloat(tv, 'f', -1, 64))
		case fmt.Stringer:
			values.Set(k, tv.String())
		default:
			data, err := json.Marshal(tv)
			if err != nil {
				return nil, fmt.Errorf("encode param %q: %w", k, err)
			}
			values.Set(k, string(data))
		}
	}
	return values, nil
}

// BatchResult is the response to one BatchOperation.
type BatchResult struct {
	// Code is the sub-response HTTP status; zero when Missing.
	Code int
	// Body is the decoded nested JSON body. It is nil when the provider
	// returned no body or one that is not valid JSON.
	Body json.RawMessage
	// RawBody is the sub-response body string as sent by the provider.
	RawBody string
	// Missing is set when the provider returned null, a malformed element,
	// or fewer elements than were requested.
	Missing bool
	// Err is the transport error of the envelope that carried this
	// operation. Code holds the envelope status when it was an *APIError.
	Err error
}

// OK reports whether the sub-request succeeded.
func (r BatchResult) OK() bool {
	return r.Err == nil && !r.Missing && r.Code >= 200 && r.Code < 300 && r.Body != nil
}

// chunkFailure is the result recorded for every operation of an envelope
// that failed as a whole.
func chunkFailure(err error) BatchResult {
	res := BatchResult{Err: err}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		res.Code = apiErr.Status
	}
	return res
}

type envelopeOp struct {
	Method      string `json:"method"`
	RelativeURL string `json:"relative_url"`
	Body        string `json:"body,omitempty"`
}

type envelopeResult struct {
	Code int     `json:"code"`
	Body *string `json:"body"`
}

// Batch executes ops in envelopes of at most MaxBatchSize, running up to
// BatchConcurrency envelopes at once. Result i always corresponds to op i.
// An envelope that fails in transport does not stop the others: its
// operations get results carrying the envelope error, since the provider
// may already have applied the envelopes that succeeded. The call fails
// only when every envelope failed. Per-operation failures are left to
// Reconcile.
func (c *Client) Batch(ctx context.Context, ops []BatchOperation) ([]BatchResult, error) {
	if len(ops) == 0 {
		return []BatchResult{}, nil
	}

	size := c.cfg.MaxBatchSize
	chunks := (len(ops) + size - 1) / size

	ctx, span := c.startSpan(ctx, "graph.Batch",
		attribute.Int("batch.operations", len(ops)),
		attribute.Int("batch.chunks", chunks),
	)

	results := make([]BatchResult, len(ops))
	chunkErrs := make([]error, chunks)
	var g errgroup.Group
	g.SetLimit(c.cfg.BatchConcurrency)

	for n := 0; n < chunks; n++ {
		lo := n * size
		hi := min(lo+size, len(ops))
		g.Go(func() error {
			res, err := c.postChunk(ctx, ops[lo:hi])
			if err != nil {
				chunkErrs[n] = fmt.Errorf("batch chunk %d/%d: %w", n+1, chunks, err)
				failed := chunkFailure(chunkErrs[n])
				for i := lo; i < hi; i++ {
					results[i] = failed
				}
				countOutcomes(results[lo:hi])
				return nil
			}
			copy(results[lo:hi], res)
			return nil
		})
	}
	_ = g.Wait()

	var firstErr error
	failedChunks := 0
	for _, err := range chunkErrs {
		if err == nil {
			continue
		}
		failedChunks++
		if firstErr == nil {
			firstErr = err
		}
	}

	if failedChunks == chunks {
		endSpan(span, firstErr)
		return nil, firstErr
	}
	span.SetAttributes(attribute.Int("batch.failed_chunks", failedChunks))
	endSpan(span, nil)

	if failedChunks > 0 {
		c.logger.WarnContext(ctx, "graph batch envelopes failed",
			slog.Int("operations", len(ops)),
			slog.Int("chunks", chunks),
			slog.Int("failed_chunks", failedChunks),
			slog.String("error", firstErr.Error()),
		)
		return results, nil
	}

	c.logger.DebugContext(ctx, "graph batch completed",
		slog.Int("operations", len(ops)),
		slog.Int("chunks", chunks),
	)
	return results, nil
}

func (c *Client) postChunk(ctx context.Context, ops []BatchOperation) ([]BatchResult, error) {
	envelope := make([]envelopeOp, len(ops))
	for i, op := range ops {
		method := op.Method
		if method == "" {
			method = http.MethodGet
		}
		envelope[i] = envelopeOp{Method: method, RelativeURL: op.RelativeURL}
		if len(op.Body) > 0 {
			envelope[i].Body = op.Body.Encode()
		}
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encode batch envelope: %w", err)
	}

	raw, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/",
		Form: url.Values{
			"batch":           {string(data)},
			"include_headers": {"false"},
		},
	})
	if err != nil {
		return nil, err
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("decode batch response: %w", err)
	}

	results := make([]BatchResult, len(ops))
	for i := range ops {
		if i >= len(elems) {
			results[i] = BatchResult{Missing: true}
			continue
		}
		results[i] = decodeResult(elems[i])
	}

	countOutcomes(results)
	return results, nil
}

// decodeResult turns one envelope element into a BatchResult. The element
// body is itself a JSON string that needs a second decode.
func decodeResult(elem json.RawMessage) BatchResult {
	trimmed := bytes.TrimSpace(elem)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return BatchResult{Missing: true}
	}

	var er envelopeResult
	if err := json.Unmarshal(trimmed, &er); err != nil || er.Code == 0 {
		return BatchResult{Missing: true, RawBody: truncate(string(trimmed))}
	}

	res := BatchResult{Code: er.Code}
	if er.Body == nil {
		res.Body = json.RawMessage(`{}`)
		return res
	}

	res.RawBody = *er.Body
	body := bytes.TrimSpace([]byte(*er.Body))
	switch {
	case len(body) == 0:
		res.Body = json.RawMessage(`{}`)
	case json.Valid(body):
		res.Body = json.RawMessage(body)
	}
	return res
}

func countOutcomes(results []BatchResult) {
	for _, r := range results {
		switch {
		case r.Missing:
			batchSubrequestsTotal.WithLabelValues("missing").Inc()
		case r.OK():
			batchSubrequestsTotal.WithLabelValues("ok").Inc()
		default:
			batchSubrequestsTotal.WithLabelValues("failed").Inc()
		}
	}
}
