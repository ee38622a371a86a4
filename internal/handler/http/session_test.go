package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-sync/internal/service"
	"github.com/utafrali/catalog-sync/pkg/middleware"
)

func TestCreateSession_Success(t *testing.T) {
	f := newFixture(t)
	in := service.CreateSessionInput{AccessToken: "tok-secret", CatalogID: "cat-1"}
	f.sessions.On("Create", mock.Anything, in).Return(testSession(), nil)

	rec := f.do(http.MethodPost, "/api/v1/sessions", in)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "tok-secret")

	got := decodeData[sessionResponse](t, rec)
	assert.Equal(t, testSessionID, got.SessionID)
	assert.Equal(t, "cat-1", got.CatalogID)
	assert.Equal(t, testSession().CreatedAt.Add(time.Hour), got.ExpiresAt)
}

func TestCreateSession_ValidationError(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/sessions", map[string]string{"catalog_id": "cat-1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "access_token")
	f.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateSession_MalformedBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
}

func TestCreateSession_StoreDown_Returns500(t *testing.T) {
	f := newFixture(t)
	in := service.CreateSessionInput{AccessToken: "tok", CatalogID: "cat-1"}
	f.sessions.On("Create", mock.Anything, in).Return(nil, errors.New("save session: connection refused"))

	rec := f.do(http.MethodPost, "/api/v1/sessions", in)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestCurrentSession(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/sessions/current", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeData[sessionResponse](t, rec)
	assert.Equal(t, testSessionID, got.SessionID)
	assert.NotContains(t, rec.Body.String(), "tok-secret")
}

func TestDeleteSession_Success(t *testing.T) {
	f := newFixture(t)
	f.sessions.On("Delete", mock.Anything, testSessionID).Return(nil)

	rec := f.do(http.MethodDelete, "/api/v1/sessions", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	f.sessions.AssertExpectations(t)
}

func TestDeleteSession_RequiresHeader(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_PARAMETER", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, middleware.HeaderSessionID)
}
