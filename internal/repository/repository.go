package repository

import (
	"context"

	"github.com/utafrali/catalog-sync/internal/domain"
)

// SessionRepository stores the credential and catalog bound to a session.
type SessionRepository interface {
	// Get returns the session or an apperrors not-found error.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Save stores the session, replacing any previous one with the same ID.
	Save(ctx context.Context, session *domain.Session) error

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
}
