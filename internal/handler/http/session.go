package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/catalog-sync/internal/domain"
	"github.com/utafrali/catalog-sync/internal/service"
	"github.com/utafrali/catalog-sync/pkg/httputil"
	"github.com/utafrali/catalog-sync/pkg/middleware"
	"github.com/utafrali/catalog-sync/pkg/validator"
)

// SessionHandler handles HTTP requests for session endpoints.
type SessionHandler struct {
	sessions SessionStore
	ttl      time.Duration
	logger   *slog.Logger
}

// NewSessionHandler creates a new session HTTP handler. ttl is reported to
// callers as the session expiry.
func NewSessionHandler(sessions SessionStore, ttl time.Duration, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		ttl:      ttl,
		logger:   logger,
	}
}

// sessionResponse never carries the access token.
type sessionResponse struct {
	SessionID string    `json:"session_id"`
	CatalogID string    `json:"catalog_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *SessionHandler) toResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		SessionID: s.ID,
		CatalogID: s.CatalogID,
		ExpiresAt: s.CreatedAt.Add(h.ttl),
	}
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateSessionInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	s, err := h.sessions.Create(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: h.toResponse(s)})
}

// Current handles GET /api/v1/sessions/current
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFromContext(r.Context())
	if !ok {
		httputil.WriteErrorResponse(w, r, http.StatusUnauthorized, httputil.ErrorResponse{
			Code:    "UNAUTHORIZED",
			Message: "session is required",
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.toResponse(s)})
}

// Delete handles DELETE /api/v1/sessions
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(middleware.HeaderSessionID)
	if !httputil.RequireParam(w, middleware.HeaderSessionID, id) {
		return
	}

	if err := h.sessions.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
