package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/complaint-tracker/internal/domain/entity"
	"github.com/yourusername/complaint-tracker/internal/domain/repository"
	apperrors "github.com/yourusername/complaint-tracker/internal/pkg/errors"
)

// stateTokenBytes gives 256 bits of entropy per handshake
const stateTokenBytes = 32

// StateTokenManager issues and checks the anti-forgery token of the
// authorization-code flow. A bound token is single use: it is removed from
// the session whether or not the check succeeds.
type StateTokenManager struct {
	sessions repository.SessionRepository
	ttl      time.Duration
	now      func() time.Time
}

func NewStateTokenManager(sessions repository.SessionRepository, ttl time.Duration) (*StateTokenManager, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session repository is required for StateTokenManager")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("state ttl must be positive")
	}
	return &StateTokenManager{sessions: sessions, ttl: ttl, now: time.Now}, nil
}

// Generate returns a fresh URL-safe token
func (m *StateTokenManager) Generate() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Bind stores token as the session's pending state, replacing any previous one
func (m *StateTokenManager) Bind(ctx context.Context, sessionID, token string) error {
	if sessionID == "" || token == "" {
		return fmt.Errorf("%w: session id and state token are required", apperrors.ErrValidation)
	}
	state := entity.PendingState{Token: token, IssuedAt: m.now().UTC()}
	if err := m.sessions.SetPendingState(ctx, sessionID, state, m.ttl); err != nil {
		return fmt.Errorf("failed to bind state token: %w", err)
	}
	return nil
}

// ConsumeAndValidate removes the pending state and reports whether it
// matched supplied. Store failures count as a mismatch.
func (m *StateTokenManager) ConsumeAndValidate(ctx context.Context, sessionID, supplied string) bool {
	if sessionID == "" {
		return false
	}
	state, err := m.sessions.TakePendingState(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[StateTokenManager] failed to take pending state for session %s: %v", sessionID, err)
		}
		return false
	}
	if supplied == "" || state.Token == "" {
		return false
	}
	if m.now().Sub(state.IssuedAt) > m.ttl {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(state.Token), []byte(supplied)) == 1
}
