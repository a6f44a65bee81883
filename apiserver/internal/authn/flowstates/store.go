package flowstates

import (
	"context"

	"github.com/trackdle/trackdle/apiserver/internal/authn"
)

// Store is the specialized interface for ephemeral storage of in-progress
// login attempts. Implementations MUST expire entries automatically after a
// short, fixed window and MUST make consumption atomic: under concurrent
// Consume calls for the same state, at most one caller may receive the
// stored value.
type Store interface {
	// Create stores a FlowState under its state parameter. The entry expires
	// automatically whether or not it is ever consumed.
	Create(ctx context.Context, flowState authn.FlowState) error
	// Consume retrieves the FlowState stored under the provided state and
	// deletes it as part of the same logical operation. If no entry exists--
	// because it was never stored, has expired, or was already consumed--
	// implementations MUST return a *meta.ErrNotFound. Callers must treat
	// all three conditions identically.
	Consume(ctx context.Context, state string) (authn.FlowState, error)
}
