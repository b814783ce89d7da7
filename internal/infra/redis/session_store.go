package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"certquiz-service/internal/app"
	"github.com/redis/go-redis/v9"
)

// SessionStore keeps quiz sessions in Redis as JSON with a sliding TTL, so any
// instance behind a load balancer can serve the next request of a session.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (*app.Session, bool, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get session: %w", err)
	}
	return decodeSession(raw)
}

func (s *SessionStore) Save(ctx context.Context, session *app.Session) error {
	raw, err := json.Marshal(session.State())
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(session.ID()), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

// Replace uses SET XX so an expired or claimed session is not recreated.
func (s *SessionStore) Replace(ctx context.Context, session *app.Session) (bool, error) {
	raw, err := json.Marshal(session.State())
	if err != nil {
		return false, fmt.Errorf("encode session: %w", err)
	}
	ok, err := s.client.SetXX(ctx, s.key(session.ID()), raw, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("replace session: %w", err)
	}
	return ok, nil
}

// Claim uses GETDEL, so across instances only one caller receives the state.
func (s *SessionStore) Claim(ctx context.Context, sessionID string) (*app.Session, bool, error) {
	raw, err := s.client.GetDel(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("claim session: %w", err)
	}
	return decodeSession(raw)
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}

func decodeSession(raw []byte) (*app.Session, bool, error) {
	var state app.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, false, fmt.Errorf("decode session: %w", err)
	}
	session, err := app.RestoreSession(state)
	if err != nil {
		return nil, false, err
	}
	return session, true, nil
}
