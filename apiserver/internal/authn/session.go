package authn

import (
	"time"

	"github.com/trackdle/trackdle/apiserver/internal/lib/crypto"
	"github.com/trackdle/trackdle/apiserver/internal/meta"
)

// Identity encapsulates the attributes of an authenticated user as asserted
// by the identity provider.
type Identity struct {
	// UserID is the stable identifier ("sub" claim) assigned to the user by
	// the identity provider.
	UserID string `json:"userID"`
	// Email is the user's email address.
	Email string `json:"email"`
	// Name is the user's display name.
	Name string `json:"name"`
}

// Session represents one authenticated user's logged-in period.
type Session struct {
	meta.ObjectMeta `json:"metadata" bson:",inline"`
	// UserID is the stable identifier of the user this Session belongs to.
	UserID string `json:"userID" bson:"userID"`
	// Email is the user's email address, copied from the identity token at
	// the time the Session was created.
	Email string `json:"email" bson:"email"`
	// Name is the user's display name, copied from the identity token at the
	// time the Session was created.
	Name string `json:"name" bson:"name"`
	// EncryptedRefreshToken is the sealed form of the refresh token issued
	// alongside this Session. The plaintext refresh token is never persisted.
	EncryptedRefreshToken string `json:"encryptedRefreshToken" bson:"encryptedRefreshToken"` // nolint: lll
	// Expires indicates the time at which this Session becomes logically
	// dead. It is fixed when the Session is created and is never extended.
	Expires *time.Time `json:"expires" bson:"expires"`
	// LastAccessed indicates the last time an authenticated request was made
	// with this Session. This is advisory telemetry, not a security boundary.
	LastAccessed *time.Time `json:"lastAccessed" bson:"lastAccessed"`
}

// NewSession returns a Session for the provided identity with a fresh random
// ID. The caller is responsible for having sealed the refresh token before
// constructing the Session.
func NewSession(
	identity Identity,
	encryptedRefreshToken string,
	ttl time.Duration,
) Session {
	now := time.Now()
	expires := now.Add(ttl)
	return Session{
		ObjectMeta: meta.ObjectMeta{
			ID:      crypto.NewToken(32),
			Created: &now,
		},
		UserID:                identity.UserID,
		Email:                 identity.Email,
		Name:                  identity.Name,
		EncryptedRefreshToken: encryptedRefreshToken,
		Expires:               &expires,
		LastAccessed:          &now,
	}
}

// Expired returns true if the Session is logically dead as of the provided
// time, regardless of which storage tier it was read from.
func (s Session) Expired(now time.Time) bool {
	return s.Expires == nil || !s.Expires.After(now)
}

// CreatedSession encapsulates what a client needs to know about a Session
// that was just created on its behalf.
type CreatedSession struct {
	// ID is the opaque session reference handed to the client. It travels in
	// the session cookie, never in a response body.
	ID string `json:"-"`
	// ExpiresIn is the number of seconds until the Session expires.
	ExpiresIn int64 `json:"expiresIn"`
}
