package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/catalog-sync/internal/domain"
	"github.com/utafrali/catalog-sync/pkg/httputil"
	"github.com/utafrali/catalog-sync/pkg/pagination"
	"github.com/utafrali/catalog-sync/pkg/validator"
)

// ProductHandler handles HTTP requests for product endpoints.
type ProductHandler struct {
	logger *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(logger *slog.Logger) *ProductHandler {
	return &ProductHandler{logger: logger}
}

// --- Request DTOs ---

// AddProductsRequest is the JSON request body for adding products. The
// client splits large requests into provider batches.
type AddProductsRequest struct {
	Products []domain.NewProduct `json:"products" validate:"required,min=1,max=500,dive"`
}

// IDsRequest is the JSON request body for operations over product or set IDs.
type IDsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=1000,dive,required"`
}

// --- Handlers ---

// List handles GET /api/v1/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCatalog(w, r)
	if !ok {
		return
	}

	products, err := c.ListProducts(r.Context())
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.Paginate(products, pagination.FromRequest(r)))
}

// Add handles POST /api/v1/products
func (h *ProductHandler) Add(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCatalog(w, r)
	if !ok {
		return
	}

	var req AddProductsRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	products, err := c.AddProducts(r.Context(), req.Products)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: products})
}

// Update handles PATCH /api/v1/products/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCatalog(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if !httputil.RequireParam(w, "id", id) {
		return
	}

	var req domain.ProductUpdate
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

	if err := c.UpdateProduct(r.Context(), id, req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id, "status": "updated"}})
}

// Delete handles POST /api/v1/products/delete
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCatalog(w, r)
	if !ok {
		return
	}

	var req IDsRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := c.DeleteProducts(r.Context(), req.IDs); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]int{"deleted": len(req.IDs)}})
}

// Status handles POST /api/v1/products/status
func (h *ProductHandler) Status(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCatalog(w, r)
	if !ok {
		return
	}

	var req IDsRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	snapshot, err := c.RefreshStatus(r.Context(), req.IDs)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: snapshot})
}

// requireCatalog fetches the session-bound Catalog stored by
// SessionFromHeader.
func requireCatalog(w http.ResponseWriter, r *http.Request) (Catalog, bool) {
	c, ok := catalogFromContext(r.Context())
	if !ok {
		httputil.WriteErrorResponse(w, r, http.StatusUnauthorized, httputil.ErrorResponse{
			Code:    "UNAUTHORIZED",
			Message: "session is required",
		})
		return nil, false
	}
	return c, true
}
