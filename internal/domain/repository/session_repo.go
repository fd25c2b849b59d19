package repository

import (
	"context"
	"time"

	"github.com/yourusername/complaint-tracker/internal/domain/entity"
)

// SessionRepository keeps session records outside the process.
// Get returns apperrors.ErrNotFound for unknown or expired sessions.
type SessionRepository interface {
	Save(ctx context.Context, session *entity.Session, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*entity.Session, error)
	// Delete removes the record and any pending state
	Delete(ctx context.Context, sessionID string) error

	// SetPendingState replaces the session's pending state
	SetPendingState(ctx context.Context, sessionID string, state entity.PendingState, ttl time.Duration) error
	// TakePendingState atomically reads and removes the pending state.
	// It returns apperrors.ErrNotFound when none is stored.
	TakePendingState(ctx context.Context, sessionID string) (*entity.PendingState, error)
}
