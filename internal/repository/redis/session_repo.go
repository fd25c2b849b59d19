package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/yourusername/complaint-tracker/internal/domain/entity"
	apperrors "github.com/yourusername/complaint-tracker/internal/pkg/errors"
)

const sessionKeyPrefix = "session:"

// SessionRepo implements repository.SessionRepository on Redis.
// The record lives at session:<id>, the pending OAuth state at
// session:<id>:state so that it can expire and be consumed on its own.
type SessionRepo struct {
	client redis.UniversalClient
}

// NewSessionRepo creates a session repository
func NewSessionRepo(client redis.UniversalClient) (*SessionRepo, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil for SessionRepo")
	}
	return &SessionRepo{client: client}, nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func stateKey(id string) string {
	return sessionKeyPrefix + id + ":state"
}

// Save stores the record as JSON with the given lifetime
func (r *SessionRepo) Save(ctx context.Context, session *entity.Session, ttl time.Duration) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("%w: session id is required", apperrors.ErrValidation)
	}
	if ttl <= 0 {
		return fmt.Errorf("%w: session ttl must be positive", apperrors.ErrValidation)
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return r.client.Set(ctx, sessionKey(session.ID), data, ttl).Err()
}

// Get loads a record
func (r *SessionRepo) Get(ctx context.Context, sessionID string) (*entity.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	var session entity.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Delete removes the record and its pending state
func (r *SessionRepo) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, sessionKey(sessionID), stateKey(sessionID)).Err()
}

// SetPendingState overwrites any state already bound to the session
func (r *SessionRepo) SetPendingState(ctx context.Context, sessionID string, state entity.PendingState, ttl time.Duration) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", apperrors.ErrValidation)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal pending state: %w", err)
	}
	return r.client.Set(ctx, stateKey(sessionID), data, ttl).Err()
}

// TakePendingState reads and deletes the pending state in one MULTI/EXEC,
// so two callbacks racing on the same session cannot both see it.
func (r *SessionRepo) TakePendingState(ctx context.Context, sessionID string) (*entity.PendingState, error) {
	key := stateKey(sessionID)

	var get *redis.StringCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, key)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	data, err := get.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	var state entity.PendingState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending state: %w", err)
	}
	return &state, nil
}
