package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	apperrors "github.com/utafrali/catalog-sync/pkg/errors"
	"github.com/utafrali/catalog-sync/pkg/httpclient"
)

// MaxFileSize is the largest image accepted for upload (10 MB).
const MaxFileSize int64 = 10 * 1024 * 1024

var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// IsAllowedContentType reports whether contentType is an accepted image type.
func IsAllowedContentType(contentType string) bool {
	ct, _, _ := strings.Cut(contentType, ";")
	return allowedContentTypes[strings.TrimSpace(strings.ToLower(ct))]
}

// File is one image to host.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Data        io.Reader
}

// Validate checks size and type before any network call.
func (f File) Validate() error {
	if f.Data == nil {
		return apperrors.InvalidInput("file is required")
	}
	if f.Size <= 0 {
		return apperrors.InvalidInput("file is empty")
	}
	if f.Size > MaxFileSize {
		return apperrors.InvalidInput(fmt.Sprintf("file exceeds %d bytes", MaxFileSize))
	}
	if !IsAllowedContentType(f.ContentType) {
		return apperrors.InvalidInput(fmt.Sprintf("content type %q is not an accepted image type", f.ContentType))
	}
	return nil
}

// Uploader hosts a file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, f File) (string, error)
}

// HTTPUploader posts images to an asset host that answers with
// {"data": {"url": ...}}.
type HTTPUploader struct {
	client   httpclient.Doer
	endpoint string
	apiKey   string
	logger   *slog.Logger
}

var _ Uploader = (*HTTPUploader)(nil)

// NewHTTPUploader creates an uploader for endpoint.
func NewHTTPUploader(client httpclient.Doer, endpoint, apiKey string, logger *slog.Logger) *HTTPUploader {
	return &HTTPUploader{
		client:   client,
		endpoint: endpoint,
		apiKey:   apiKey,
		logger:   logger,
	}
}

type uploadResponse struct {
	Success bool `json:"success"`
	Data    struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Upload sends f as the multipart field "image" and returns the hosted URL.
func (u *HTTPUploader) Upload(ctx context.Context, f File) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}

	body, contentType, err := u.encode(f)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := u.client.Do(ctx, req)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			return "", apperrors.Upstream(fmt.Sprintf("media-host: status %d: %s", statusErr.StatusCode, statusErr.Body))
		}
		return "", fmt.Errorf("upload %s: %w", f.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", httpclient.ParseResponseError(resp, "media-host")
	}

	var out uploadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", apperrors.Upstream("media host returned an unreadable response")
	}
	if out.Data.URL == "" {
		return "", apperrors.Upstream("media host response carries no url")
	}

	u.logger.InfoContext(ctx, "image uploaded",
		slog.String("file", f.Name),
		slog.Int64("size", f.Size),
	)
	return out.Data.URL, nil
}

// encode buffers the multipart body so the request can be replayed on retry.
func (u *HTTPUploader) encode(f File) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	if u.apiKey != "" {
		if err := w.WriteField("key", u.apiKey); err != nil {
			return nil, "", fmt.Errorf("write key field: %w", err)
		}
	}

	name := f.Name
	if name == "" {
		name = "image"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, name))
	h.Set("Content-Type", f.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create image part: %w", err)
	}
	if _, err := io.Copy(part, io.LimitReader(f.Data, MaxFileSize+1)); err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}
