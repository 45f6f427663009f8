// Package redis keeps session records in Redis. Sessions are small, hot,
// upsert-heavy records; Redis-side atomicity makes concurrent upserts on the
// same session id safe without coordination here.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/davidbz/modelarena/internal/domain"
)

const sessionKeyPrefix = "session:"

// SessionStore is a Redis implementation of domain.SessionStore.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ domain.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a session store. A zero ttl keeps sessions
// indefinitely.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		ttl:    ttl,
	}
}

// FindBySessionID returns the session record, or nil when unseen.
func (s *SessionStore) FindBySessionID(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, errors.New("session id cannot be empty")
	}

	data, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session lookup failed: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Upsert creates or refreshes a session record.
func (s *SessionStore) Upsert(ctx context.Context, session *domain.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if session.SessionID == "" {
		return errors.New("session id cannot be empty")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKeyPrefix+session.SessionID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("session upsert failed: %w", err)
	}
	return nil
}
