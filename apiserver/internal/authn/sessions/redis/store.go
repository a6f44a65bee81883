package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	"github.com/trackdle/trackdle/apiserver/internal/authn"
	"github.com/trackdle/trackdle/apiserver/internal/authn/sessions"
	"github.com/trackdle/trackdle/apiserver/internal/meta"
)

type store struct {
	redisClient *redis.Client
}

// NewStore returns a Redis-based implementation of the sessions.CacheStore
// interface.
func NewStore(redisClient *redis.Client) sessions.CacheStore {
	return &store{
		redisClient: redisClient,
	}
}

func (s *store) Set(
	ctx context.Context,
	session authn.Session,
	ttl time.Duration,
) error {
	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return errors.Wrapf(err, "error marshaling session %q", session.ID)
	}
	if err := s.redisClient.Set(
		sessionKey(session.ID),
		sessionJSON,
		ttl,
	).Err(); err != nil {
		return errors.Wrapf(err, "error caching session %q", session.ID)
	}
	return nil
}

func (s *store) Get(
	ctx context.Context,
	id string,
) (authn.Session, error) {
	session := authn.Session{}
	sessionJSON, err := s.redisClient.Get(sessionKey(id)).Bytes()
	if err == redis.Nil {
		return session, &meta.ErrNotFound{
			Type: "Session",
			ID:   id,
		}
	}
	if err != nil {
		return session, errors.Wrapf(
			err,
			"error reading cached session %q",
			id,
		)
	}
	if err := json.Unmarshal(sessionJSON, &session); err != nil {
		return session, errors.Wrapf(
			err,
			"error unmarshaling cached session %q",
			id,
		)
	}
	return session, nil
}

func (s *store) Delete(ctx context.Context, id string) error {
	// DEL on an absent key is a no-op; delete is idempotent by contract.
	if err := s.redisClient.Del(sessionKey(id)).Err(); err != nil {
		return errors.Wrapf(err, "error deleting cached session %q", id)
	}
	return nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("sessions:%s", id)
}
