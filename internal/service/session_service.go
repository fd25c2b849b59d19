package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/complaint-tracker/internal/domain/entity"
	"github.com/yourusername/complaint-tracker/internal/domain/repository"
	apperrors "github.com/yourusername/complaint-tracker/internal/pkg/errors"
)

// SessionService manages server-side sessions. The cookie only ever carries
// the session id.
type SessionService struct {
	sessions repository.SessionRepository
	userRepo repository.UserRepository
	ttl      time.Duration
	now      func() time.Time
	newID    func() string
}

func NewSessionService(sessions repository.SessionRepository, userRepo repository.UserRepository, ttl time.Duration) (*SessionService, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session repository is required for SessionService")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("user repository is required for SessionService")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &SessionService{
		sessions: sessions,
		userRepo: userRepo,
		ttl:      ttl,
		now:      time.Now,
		newID:    uuid.NewString,
	}, nil
}

// Start creates an anonymous session
func (s *SessionService) Start(ctx context.Context) (*entity.Session, error) {
	now := s.now().UTC()
	session := &entity.Session{
		ID:        s.newID(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Save(ctx, session, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return session, nil
}

// Load returns apperrors.ErrNotFound for unknown or expired ids
func (s *SessionService) Load(ctx context.Context, sessionID string) (*entity.Session, error) {
	if sessionID == "" {
		return nil, apperrors.ErrNotFound
	}
	return s.sessions.Get(ctx, sessionID)
}

// Establish authenticates the visitor as user. The previous session is
// discarded and a new id is issued, so an id planted before login is
// worthless afterwards.
func (s *SessionService) Establish(ctx context.Context, previousID string, user *entity.User) (*entity.Session, error) {
	if user == nil || user.ID == 0 || user.Username == "" {
		return nil, fmt.Errorf("%w: cannot establish session without a stored user", apperrors.ErrValidation)
	}
	if previousID != "" {
		if err := s.sessions.Delete(ctx, previousID); err != nil {
			log.Printf("[SessionService] failed to drop previous session %s: %v", previousID, err)
		}
	}

	now := s.now().UTC()
	session := &entity.Session{
		ID:        s.newID(),
		Username:  user.Username,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Save(ctx, session, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to establish session: %w", err)
	}
	log.Printf("[SessionService] session established for user ID=%d (%s)", user.ID, user.Username)
	return session, nil
}

// Clear deletes the session. Clearing an unknown id is not an error.
func (s *SessionService) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// CurrentIdentity returns the identity stored in the session, without
// touching the user store.
func (s *SessionService) CurrentIdentity(ctx context.Context, sessionID string) (entity.Identity, bool) {
	session, err := s.Load(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[SessionService] failed to load session %s: %v", sessionID, err)
		}
		return entity.Identity{}, false
	}
	return session.Identity()
}

// CurrentUser resolves the session to a stored user. A session whose user
// no longer exists or was renamed is cleared and reported as unauthorized.
func (s *SessionService) CurrentUser(ctx context.Context, sessionID string) (*entity.User, error) {
	identity, ok := s.CurrentIdentity(ctx, sessionID)
	if !ok {
		return nil, apperrors.ErrUnauthorized
	}
	user, err := s.userRepo.GetByID(identity.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = s.Clear(ctx, sessionID)
			return nil, apperrors.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}
	if user.Username != identity.Username {
		_ = s.Clear(ctx, sessionID)
		return nil, apperrors.ErrUnauthorized
	}
	return user, nil
}
