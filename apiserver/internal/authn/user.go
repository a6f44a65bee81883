package authn

import (
	"time"

	"github.com/trackdle/trackdle/apiserver/internal/meta"
)

// User represents a durable user profile, keyed by the stable identifier
// assigned by the identity provider. The user's persisted game data lives in
// the same document but is owned by the game endpoints; the authentication
// service only guarantees the document exists after first login.
type User struct {
	meta.ObjectMeta `json:"metadata" bson:",inline"`
	// Email is the user's email address as most recently asserted by the
	// identity provider.
	Email string `json:"email" bson:"email"`
	// Name is the user's display name as most recently asserted by the
	// identity provider.
	Name string `json:"name" bson:"name"`
	// LastLogin indicates the most recent time the user completed a login.
	LastLogin *time.Time `json:"lastLogin,omitempty" bson:"lastLogin,omitempty"` // nolint: lll
}
