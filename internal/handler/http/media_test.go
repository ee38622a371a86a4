package http

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-sync/internal/media"
	apperrors "github.com/utafrali/catalog-sync/pkg/errors"
	"github.com/utafrali/catalog-sync/pkg/middleware"
)

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func multipartRequest(t *testing.T, field, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if field != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/media", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set(middleware.HeaderSessionID, testSessionID)
	return req
}

func TestUploadMedia_Success(t *testing.T) {
	f := newFixture(t)
	f.uploader.On("Upload", mock.Anything, mock.MatchedBy(func(file media.File) bool {
		return file.Name == "shirt.png" && file.ContentType == "image/png" && file.Size == int64(len(pngHeader))
	})).Return("https://cdn.example.com/shirt.png", nil)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, multipartRequest(t, "file", "shirt.png", "image/png", pngHeader))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "https://cdn.example.com/shirt.png", decodeData[map[string]string](t, rec)["url"])
}

func TestUploadMedia_SniffsMissingContentType(t *testing.T) {
	f := newFixture(t)
	f.uploader.On("Upload", mock.Anything, mock.MatchedBy(func(file media.File) bool {
		return file.ContentType == "image/png"
	})).Return("https://cdn.example.com/x.png", nil)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, multipartRequest(t, "file", "x", "", pngHeader))

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestUploadMedia_MissingFile(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, multipartRequest(t, "", "", "", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, `"file"`)
}

func TestUploadMedia_RejectedByValidation(t *testing.T) {
	f := newFixture(t)
	f.uploader.On("Upload", mock.Anything, mock.Anything).
		Return("", apperrors.InvalidInput(`content type "text/plain" is not an accepted image type`))

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, multipartRequest(t, "file", "notes.txt", "text/plain", []byte("hello")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadMedia_HostFailure_Returns502(t *testing.T) {
	f := newFixture(t)
	f.uploader.On("Upload", mock.Anything, mock.Anything).
		Return("", apperrors.Upstream("media-host: status 500: boom"))

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, multipartRequest(t, "file", "shirt.png", "image/png", pngHeader))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
