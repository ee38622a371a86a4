package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/utafrali/catalog-sync/internal/domain"
	"github.com/utafrali/catalog-sync/internal/graph"
	"github.com/utafrali/catalog-sync/internal/service"
	"github.com/utafrali/catalog-sync/pkg/httputil"
)

// Catalog is the set of catalog operations exposed over HTTP.
// *catalog.Client satisfies it.
type Catalog interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	AddProducts(ctx context.Context, items []domain.NewProduct) ([]domain.Product, error)
	DeleteProducts(ctx context.Context, ids []string) error
	UpdateProduct(ctx context.Context, id string, u domain.ProductUpdate) error
	RefreshStatus(ctx context.Context, ids []string) (domain.StatusSnapshot, error)
	ListSets(ctx context.Context) ([]domain.ProductSet, error)
	CreateSet(ctx context.Context, name string, ids []string) (domain.ProductSet, error)
	UpdateSet(ctx context.Context, id, name string, ids []string) (domain.ProductSet, error)
	DeleteSets(ctx context.Context, ids []string) error
}

// CatalogFactory returns a Catalog bound to the session's credential and
// catalog.
type CatalogFactory func(s *domain.Session) (Catalog, error)

// SessionStore issues and resolves sessions. *service.SessionService
// satisfies it.
type SessionStore interface {
	Create(ctx context.Context, in service.CreateSessionInput) (*domain.Session, error)
	Get(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
}

// providerError is the public view of a failed top-level provider call.
type providerError struct {
	Status  int    `json:"status"`
	Code    int    `json:"code,omitempty"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

// batchFailure lists both sides of a partially applied batch. Succeeded
// operations were applied by the provider and are not rolled back.
type batchFailure struct {
	Failures  []graph.Failure `json:"failures"`
	Succeeded []graph.Success `json:"succeeded"`
}

// writeError maps provider errors before falling back to the shared
// AppError mapping. A rejected credential is reported as 401 so the
// caller re-registers; a partially failed batch lists every failed item.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	if errors.Is(err, graph.ErrAuth) {
		logger.WarnContext(r.Context(), "provider rejected credential", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, r, http.StatusUnauthorized, httputil.ErrorResponse{
			Code:    "REAUTH_REQUIRED",
			Message: "provider credential was rejected, register a new session",
		})
		return
	}

	var batchErr *graph.BatchError
	if errors.As(err, &batchErr) {
		logger.WarnContext(r.Context(), "batch partially failed",
			slog.Int("failed", len(batchErr.Failures)),
			slog.Int("total", batchErr.Total),
		)
		httputil.WriteErrorResponse(w, r, http.StatusBadGateway, httputil.ErrorResponse{
			Code:    "PARTIAL_FAILURE",
			Message: batchErr.Error(),
			Details: batchFailure{
				Failures:  batchErr.Failures,
				Succeeded: append([]graph.Success{}, batchErr.Succeeded...),
			},
		})
		return
	}

	var apiErr *graph.APIError
	if errors.As(err, &apiErr) {
		logger.ErrorContext(r.Context(), "provider call failed", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, r, http.StatusBadGateway, httputil.ErrorResponse{
			Code:    "UPSTREAM_ERROR",
			Message: "provider request failed",
			Details: providerError{
				Status:  apiErr.Status,
				Code:    apiErr.Detail.Code,
				Type:    apiErr.Detail.Type,
				Message: apiErr.Detail.Message,
			},
		})
		return
	}

	httputil.WriteError(w, r, err, logger)
}
