package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/catalog-sync/internal/domain"
	"github.com/utafrali/catalog-sync/internal/repository"
	apperrors "github.com/utafrali/catalog-sync/pkg/errors"
)

// CreateSessionInput binds a provider credential to a catalog.
type CreateSessionInput struct {
	AccessToken string `json:"access_token" validate:"required,max=512"`
	CatalogID   string `json:"catalog_id" validate:"required,max=64"`
}

// SessionService issues and resolves sessions. A session holds the
// credential so callers only ever present an opaque session ID.
type SessionService struct {
	repo   repository.SessionRepository
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time
	newID  func() string
}

// NewSessionService creates a new session service.
func NewSessionService(repo repository.SessionRepository, logger *slog.Logger, ttl time.Duration) *SessionService {
	return &SessionService{
		repo:   repo,
		logger: logger,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// TTL is how long a session lives after creation.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Create stores a new session for in.
func (s *SessionService) Create(ctx context.Context, in CreateSessionInput) (*domain.Session, error) {
	token := strings.TrimSpace(in.AccessToken)
	catalogID := strings.TrimSpace(in.CatalogID)
	if token == "" {
		return nil, apperrors.InvalidInput("access token is required")
	}
	if catalogID == "" {
		return nil, apperrors.InvalidInput("catalog id is required")
	}

	session := &domain.Session{
		ID:          s.newID(),
		AccessToken: token,
		CatalogID:   catalogID,
		CreatedAt:   s.now(),
	}
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.logger.InfoContext(ctx, "session created",
		slog.String("session_id", session.ID),
		slog.String("catalog_id", session.CatalogID),
	)
	return session, nil
}

// Get resolves a session ID. Unknown or expired sessions are reported as
// unauthorized so the caller re-registers.
func (s *SessionService) Get(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		return nil, apperrors.Unauthorized("session id is required")
	}

	session, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("session is unknown or expired")
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// Delete ends a session. Ending an unknown session succeeds.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("session id is required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.logger.InfoContext(ctx, "session deleted", slog.String("session_id", id))
	return nil
}
