package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/catalog-sync/internal/domain"
	"github.com/utafrali/catalog-sync/pkg/httputil"
	"github.com/utafrali/catalog-sync/pkg/logger"
	"github.com/utafrali/catalog-sync/pkg/middleware"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	sessionKey contextKey = "session"
	catalogKey contextKey = "catalog"
)

// SessionFromHeader resolves the X-Session-ID header to a session and a
// Catalog bound to it. Requests without a live session are rejected with
// 401 before reaching the handler.
func SessionFromHeader(sessions SessionStore, catalogs CatalogFactory, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := sessions.Get(r.Context(), r.Header.Get(middleware.HeaderSessionID))
			if err != nil {
				httputil.WriteError(w, r, err, l)
				return
			}

			c, err := catalogs(s)
			if err != nil {
				httputil.WriteError(w, r, err, l)
				return
			}

			ctx := logger.WithSessionID(r.Context(), s.ID)
			ctx = logger.WithCatalogID(ctx, s.CatalogID)
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, l))
			ctx = context.WithValue(ctx, sessionKey, s)
			ctx = context.WithValue(ctx, catalogKey, c)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFromContext(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*domain.Session)
	return s, ok && s != nil
}

func catalogFromContext(ctx context.Context) (Catalog, bool) {
	c, ok := ctx.Value(catalogKey).(Catalog)
	return c, ok && c != nil
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteErrorResponse(w, r, http.StatusUnsupportedMediaType, httputil.ErrorResponse{
					Code:    "UNSUPPORTED_MEDIA_TYPE",
					Message: "Content-Type must be application/json",
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
