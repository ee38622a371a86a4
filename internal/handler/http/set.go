package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/catalog-sync/pkg/httputil"
	"github.com/utafrali/catalog-sync/pkg/validator"
)

// SetHandler handles HTTP requests for product set endpoints.
type SetHandler struct {
	logger *slog.Logger
}

// NewSetHandler creates a new product set HTTP handler.
func NewSetHandler(logger *slog.Logger) *SetHandler {
	return &SetHandler{logger: logger}
}

// SetRequest is the JSON request body for creating or replacing a set.
// ProductIDs is the complete desired membership; an empty list empties the
// set.
type SetRequest struct {
	Name       string   `json:"name" validate:"required,max=200"`
	ProductIDs []string `json:"product_ids" validate:"max=5000,dive,required"`
}

// List handles GET /api/v1/sets
func (h *SetHandler) List(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCatalog(w, r)
	if !ok {
		return
	}

	sets, err := c.ListSets(r.Context())
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: sets})
}

// Create handles POST /api/v1/sets
func (h *SetHandler) Create(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCatalog(w, r)
	if !ok {
		return
	}

	var req SetRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	set, err := c.CreateSet(r.Context(), req.Name, req.ProductIDs)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: set})
}

// Update handles PUT /api/v1/sets/{id}
func (h *SetHandler) Update(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCatalog(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if !httputil.RequireParam(w, "id", id) {
		return
	}

	var req SetRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	set, err := c.UpdateSet(r.Context(), id, req.Name, req.ProductIDs)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: set})
}

// Delete handles POST /api/v1/sets/delete
func (h *SetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCatalog(w, r)
	if !ok {
		return
	}

	var req IDsRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := c.DeleteSets(r.Context(), req.IDs); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]int{"deleted": len(req.IDs)}})
}
