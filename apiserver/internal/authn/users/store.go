package users

import (
	"context"

	"github.com/trackdle/trackdle/apiserver/internal/authn"
)

// Store is the specialized interface for durable storage of User profiles.
type Store interface {
	// Upsert writes the provided User. If no User with the same ID exists,
	// one is created (with empty game data); otherwise only the profile
	// attributes and last-login timestamp are updated. Game data is owned by
	// the game endpoints and is never touched here.
	Upsert(ctx context.Context, user authn.User) error
	// Get retrieves the User with the provided ID. If no such User exists,
	// implementations MUST return a *meta.ErrNotFound.
	Get(ctx context.Context, id string) (authn.User, error)
}
