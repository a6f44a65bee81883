package sessions

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/trackdle/trackdle/apiserver/internal/authn"
	"github.com/trackdle/trackdle/apiserver/internal/authn/flowstates"
	"github.com/trackdle/trackdle/apiserver/internal/authn/oidc"
	"github.com/trackdle/trackdle/apiserver/internal/authn/users"
	"github.com/trackdle/trackdle/apiserver/internal/meta"
)

// AuthenticateRequest encapsulates everything a client presents when
// concluding an OpenID Connect login flow.
type AuthenticateRequest struct {
	// Code is the single-use authorization code issued by the identity
	// provider.
	Code string
	// State is the correlation token registered when the flow was initiated.
	State string
	// Nonce is the anti-replay value registered when the flow was initiated.
	// It must match both the stored flow state and the nonce embedded in the
	// identity token.
	Nonce string
	// CodeVerifier is the PKCE verifier that binds the authorization code to
	// the client that requested it.
	CodeVerifier string
}

// Service is the specialized interface for managing Sessions and the login
// flows that create them. It's decoupled from underlying technology choices
// (e.g. data store, identity provider) to keep business logic reusable and
// consistent while the underlying tech stack remains free to change.
type Service interface {
	// Initiate registers a new in-progress login attempt. No Session exists
	// yet.
	Initiate(
		ctx context.Context,
		state string,
		nonce string,
		metadata map[string]string,
	) error
	// Authenticate concludes a login attempt: it consumes the flow state
	// registered at Initiate time, exchanges the authorization code for
	// tokens, verifies the returned identity token and its embedded nonce,
	// upserts the user's profile, and creates a Session. A flow state is
	// consumed even when a later step fails; a failed attempt cannot be
	// retried with the same state.
	Authenticate(
		ctx context.Context,
		req AuthenticateRequest,
	) (authn.CreatedSession, error)
	// Get retrieves the live Session with the provided ID. If none exists,
	// implementations MUST return a *meta.ErrNotFound.
	Get(ctx context.Context, id string) (authn.Session, error)
	// Touch updates the Session's last-accessed time.
	Touch(ctx context.Context, session authn.Session) error
	// Delete deletes the specified Session. Deleting an absent Session is
	// not an error.
	Delete(ctx context.Context, id string) error
}

type service struct {
	store           Store
	flowStatesStore flowstates.Store
	usersStore      users.Store
	identityClient  oidc.Client
}

// NewService returns a specialized interface for managing Sessions.
func NewService(
	store Store,
	flowStatesStore flowstates.Store,
	usersStore users.Store,
	identityClient oidc.Client,
) Service {
	return &service{
		store:           store,
		flowStatesStore: flowStatesStore,
		usersStore:      usersStore,
		identityClient:  identityClient,
	}
}

func (s *service) Initiate(
	ctx context.Context,
	state string,
	nonce string,
	metadata map[string]string,
) error {
	if err := s.flowStatesStore.Create(
		ctx,
		authn.NewFlowState(state, nonce, metadata),
	); err != nil {
		return errors.Wrap(err, "error storing new flow state")
	}
	return nil
}

func (s *service) Authenticate(
	ctx context.Context,
	req AuthenticateRequest,
) (authn.CreatedSession, error) {
	createdSession := authn.CreatedSession{}
	// Consuming the flow state up front means a replayed callback-- or two
	// concurrent callbacks racing each other-- finds nothing to consume.
	flowState, err := s.flowStatesStore.Consume(ctx, req.State)
	if err != nil {
		if _, ok := errors.Cause(err).(*meta.ErrNotFound); ok {
			return createdSession, &meta.ErrInvalidState{}
		}
		return createdSession, errors.Wrap(err, "error consuming flow state")
	}
	if flowState.Nonce != req.Nonce {
		return createdSession, &meta.ErrNonceMismatch{}
	}
	tokens, err := s.identityClient.ExchangeCode(
		ctx,
		req.Code,
		req.CodeVerifier,
	)
	if err != nil {
		return createdSession, err
	}
	claims, err := s.identityClient.VerifyIdentityToken(
		ctx,
		tokens.RawIDToken,
	)
	if err != nil {
		return createdSession, err
	}
	// The flow-state check above proved the caller initiated this flow; this
	// one proves the token was issued FOR this flow. Only the token is
	// actually signed by the provider, so both checks are required.
	if claims.Nonce != req.Nonce {
		return createdSession, &meta.ErrNonceMismatch{}
	}
	now := time.Now()
	if err := s.usersStore.Upsert(
		ctx,
		authn.User{
			ObjectMeta: meta.ObjectMeta{
				ID:      claims.Subject,
				Created: &now,
			},
			Email:     claims.Email,
			Name:      claims.Name,
			LastLogin: &now,
		},
	); err != nil {
		return createdSession, errors.Wrapf(
			err,
			"error upserting user %q",
			claims.Subject,
		)
	}
	createdSession, err = s.store.Create(
		ctx,
		authn.Identity{
			UserID: claims.Subject,
			Email:  claims.Email,
			Name:   claims.Name,
		},
		tokens.RefreshToken,
	)
	if err != nil {
		return createdSession, errors.Wrap(err, "error creating session")
	}
	return createdSession, nil
}

func (s *service) Get(
	ctx context.Context,
	id string,
) (authn.Session, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		if _, ok := errors.Cause(err).(*meta.ErrNotFound); ok {
			return session, err
		}
		return session, errors.Wrapf(
			err,
			"error retrieving session %q from store",
			id,
		)
	}
	return session, nil
}

func (s *service) Touch(
	ctx context.Context,
	session authn.Session,
) error {
	return s.store.Touch(ctx, session)
}

func (s *service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return errors.Wrapf(err, "error removing session %q from store", id)
	}
	return nil
}
