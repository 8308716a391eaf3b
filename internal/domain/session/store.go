// internal/domain/session/store.go
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "session:"

type cmdable interface {
	Get(context.Context, string) *redis.StringCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Expire(context.Context, string, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// Store keeps session state in Redis under session:<id> with a sliding TTL
type Store struct {
	redis  cmdable
	ttl    time.Duration
	logger logrus.FieldLogger
}

// NewStore creates a session store
func NewStore(client cmdable, ttl time.Duration, logger logrus.FieldLogger) *Store {
	return &Store{redis: client, ttl: ttl, logger: logger}
}

func key(id string) string {
	return keyPrefix + id
}

// Load returns the state for id, or an empty state when none is stored.
// Unreadable state is discarded rather than failing the request.
func (s *Store) Load(ctx context.Context, id string) (*State, error) {
	raw, err := s.redis.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	state, err := Decode(raw)
	if err != nil {
		s.logger.WithError(err).WithField("session_id", id).Warn("Discarding unreadable session state")
		return &State{}, nil
	}

	if err := s.redis.Expire(ctx, key(id), s.ttl).Err(); err != nil {
		s.logger.WithError(err).WithField("session_id", id).Warn("Failed to refresh session TTL")
	}
	return state, nil
}

// Save writes state for id
func (s *Store) Save(ctx context.Context, id string, state *State) error {
	data, err := state.Encode()
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.redis.Set(ctx, key(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	state.dirty = false
	return nil
}

// Delete removes the state for id
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
