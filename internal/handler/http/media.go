package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/utafrali/catalog-sync/internal/media"
	"github.com/utafrali/catalog-sync/pkg/httputil"
)

// multipartOverhead is the allowance for multipart framing on top of the
// file itself.
const multipartOverhead = 1 << 20

// MediaHandler handles image uploads to the asset host.
type MediaHandler struct {
	uploader media.Uploader
	logger   *slog.Logger
}

// NewMediaHandler creates a new media HTTP handler.
func NewMediaHandler(uploader media.Uploader, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{
		uploader: uploader,
		logger:   logger,
	}
}

// Upload handles POST /api/v1/media
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(media.MaxFileSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteErrorResponse(w, r, http.StatusRequestEntityTooLarge, httputil.ErrorResponse{
				Code:    "FILE_TOO_LARGE",
				Message: "file exceeds the upload limit",
			})
			return
		}
		httputil.WriteErrorResponse(w, r, http.StatusBadRequest, httputil.ErrorResponse{
			Code:    "INVALID_INPUT",
			Message: "invalid multipart body: " + err.Error(),
		})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteErrorResponse(w, r, http.StatusBadRequest, httputil.ErrorResponse{
			Code:    "INVALID_INPUT",
			Message: "multipart field \"file\" is required",
		})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		sniff := make([]byte, 512)
		n, _ := io.ReadFull(file, sniff)
		contentType = http.DetectContentType(sniff[:n])
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
	}

	url, err := h.uploader.Upload(r.Context(), media.File{
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Data:        file,
	})
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: map[string]string{"url": url}})
}
