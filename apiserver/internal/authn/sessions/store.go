package sessions

import (
	"context"
	"log"
	"time"

	"github.com/pkg/errors"
	"github.com/trackdle/trackdle/apiserver/internal/authn"
	"github.com/trackdle/trackdle/apiserver/internal/lib/crypto"
	"github.com/trackdle/trackdle/apiserver/internal/meta"
)

// Store is the specialized interface for two-tier persistence of Sessions.
// The durable tier owns the canonical copy of every Session; the cache tier
// holds a denormalized copy whose TTL never exceeds the Session's remaining
// lifetime. A Session past its expiry is never returned, regardless of which
// tier still holds it.
type Store interface {
	// Create mints a new Session for the provided identity, seals the
	// provided refresh token, writes the Session to the durable tier, and
	// best-effort copies it into the cache tier.
	Create(
		ctx context.Context,
		identity authn.Identity,
		refreshToken string,
	) (authn.CreatedSession, error)
	// Get retrieves the Session with the provided ID, trying the cache tier
	// first and falling back to (and repairing the cache from) the durable
	// tier. If no live Session exists, implementations MUST return a
	// *meta.ErrNotFound.
	Get(ctx context.Context, id string) (authn.Session, error)
	// Touch updates the Session's last-accessed time in both tiers. Lost
	// updates under concurrent Touch calls are acceptable; last write wins.
	Touch(ctx context.Context, session authn.Session) error
	// Delete removes the Session with the provided ID from both tiers.
	// Deleting an absent Session is not an error.
	Delete(ctx context.Context, id string) error
	// GetRefreshToken retrieves the Session with the provided ID and unseals
	// its refresh token. A Session that exists but whose sealed token cannot
	// be authenticated yields a terminal crypto error, never a not-found.
	GetRefreshToken(ctx context.Context, id string) (string, error)
}

// DurableStore is the interface for the authoritative session tier.
type DurableStore interface {
	Create(ctx context.Context, session authn.Session) error
	// Get MUST return a *meta.ErrNotFound if no Session with the provided ID
	// exists. Expiry is NOT this tier's concern; callers filter dead
	// Sessions themselves.
	Get(ctx context.Context, id string) (authn.Session, error)
	Touch(ctx context.Context, id string, lastAccessed time.Time) error
	// Delete MUST be idempotent.
	Delete(ctx context.Context, id string) error
}

// CacheStore is the interface for the ephemeral session tier.
type CacheStore interface {
	// Set writes the Session with the provided TTL, after which the entry
	// evicts itself.
	Set(ctx context.Context, session authn.Session, ttl time.Duration) error
	// Get MUST return a *meta.ErrNotFound if no Session with the provided ID
	// is cached.
	Get(ctx context.Context, id string) (authn.Session, error)
	// Delete MUST be idempotent.
	Delete(ctx context.Context, id string) error
}

type store struct {
	durableStore DurableStore
	cacheStore   CacheStore
	codec        *crypto.Codec
	sessionTTL   time.Duration
}

// NewStore returns a two-tier implementation of the Store interface in which
// durableStore is authoritative and cacheStore is a best-effort accelerant.
// Cache-tier failures are logged and degrade to the durable tier; they never
// fail the operation.
func NewStore(
	durableStore DurableStore,
	cacheStore CacheStore,
	codec *crypto.Codec,
	sessionTTL time.Duration,
) Store {
	return &store{
		durableStore: durableStore,
		cacheStore:   cacheStore,
		codec:        codec,
		sessionTTL:   sessionTTL,
	}
}

func (s *store) Create(
	ctx context.Context,
	identity authn.Identity,
	refreshToken string,
) (authn.CreatedSession, error) {
	createdSession := authn.CreatedSession{}
	encryptedRefreshToken, err := s.codec.Encrypt(refreshToken)
	if err != nil {
		return createdSession, errors.Wrap(err, "error sealing refresh token")
	}
	session := authn.NewSession(identity, encryptedRefreshToken, s.sessionTTL)
	// The durable tier is authoritative, so it is written first. Only after
	// that succeeds is the cache tier worth populating.
	if err := s.durableStore.Create(ctx, session); err != nil {
		return createdSession, errors.Wrapf(
			err,
			"error storing new session %q",
			session.ID,
		)
	}
	s.cacheSet(ctx, session)
	createdSession.ID = session.ID
	createdSession.ExpiresIn = int64(s.sessionTTL / time.Second)
	return createdSession, nil
}

func (s *store) Get(
	ctx context.Context,
	id string,
) (authn.Session, error) {
	now := time.Now()
	session, err := s.cacheStore.Get(ctx, id)
	if err == nil {
		// The cache TTL already bounds the entry's lifetime, but clock skew
		// or a TTL bug must not be load-bearing for correctness.
		if session.Expired(now) {
			return authn.Session{}, &meta.ErrNotFound{
				Type: "Session",
				ID:   id,
			}
		}
		return session, nil
	}
	if _, ok := errors.Cause(err).(*meta.ErrNotFound); !ok {
		// A cache-tier outage costs latency, not correctness. Fall through
		// to the durable tier.
		log.Println(
			errors.Wrapf(err, "error reading session %q from cache", id),
		)
	}
	session, err = s.durableStore.Get(ctx, id)
	if err != nil {
		return session, err
	}
	// Expired sessions linger in durable storage until purged; they are
	// absent for all logical purposes.
	if session.Expired(now) {
		return authn.Session{}, &meta.ErrNotFound{
			Type: "Session",
			ID:   id,
		}
	}
	// Read repair: a cold cache self-heals without re-authentication.
	s.cacheSet(ctx, session)
	return session, nil
}

func (s *store) Touch(
	ctx context.Context,
	session authn.Session,
) error {
	now := time.Now()
	session.LastAccessed = &now
	if err := s.durableStore.Touch(ctx, session.ID, now); err != nil {
		return errors.Wrapf(err, "error touching session %q", session.ID)
	}
	s.cacheSet(ctx, session)
	return nil
}

func (s *store) Delete(ctx context.Context, id string) error {
	if err := s.durableStore.Delete(ctx, id); err != nil {
		return errors.Wrapf(err, "error deleting session %q", id)
	}
	if err := s.cacheStore.Delete(ctx, id); err != nil {
		return errors.Wrapf(
			err,
			"error deleting session %q from cache",
			id,
		)
	}
	return nil
}

func (s *store) GetRefreshToken(
	ctx context.Context,
	id string,
) (string, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	refreshToken, err := s.codec.Decrypt(session.EncryptedRefreshToken)
	if err != nil {
		// A session that exists but won't decrypt means tampering or a key
		// mismatch. That's terminal, not a miss.
		return "", errors.Wrapf(
			err,
			"error unsealing refresh token for session %q",
			id,
		)
	}
	return refreshToken, nil
}

// cacheSet best-effort writes a session to the cache tier with a TTL equal
// to the session's remaining lifetime. Sessions at or past expiry are not
// cached, and cache failures are logged rather than propagated.
func (s *store) cacheSet(ctx context.Context, session authn.Session) {
	ttl := time.Until(*session.Expires)
	if ttl <= 0 {
		return
	}
	if err := s.cacheStore.Set(ctx, session, ttl); err != nil {
		log.Println(
			errors.Wrapf(err, "error caching session %q", session.ID),
		)
	}
}
