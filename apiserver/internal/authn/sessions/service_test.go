package sessions

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/trackdle/trackdle/apiserver/internal/authn"
	"github.com/trackdle/trackdle/apiserver/internal/authn/oidc"
	"github.com/trackdle/trackdle/apiserver/internal/meta"
)

type mockStore struct {
	CreateFn func(
		ctx context.Context,
		identity authn.Identity,
		refreshToken string,
	) (authn.CreatedSession, error)
	GetFn             func(ctx context.Context, id string) (authn.Session, error)
	TouchFn           func(ctx context.Context, session authn.Session) error
	DeleteFn          func(ctx context.Context, id string) error
	GetRefreshTokenFn func(ctx context.Context, id string) (string, error)
}

func (m *mockStore) Create(
	ctx context.Context,
	identity authn.Identity,
	refreshToken string,
) (authn.CreatedSession, error) {
	return m.CreateFn(ctx, identity, refreshToken)
}

func (m *mockStore) Get(
	ctx context.Context,
	id string,
) (authn.Session, error) {
	return m.GetFn(ctx, id)
}

func (m *mockStore) Touch(ctx context.Context, session authn.Session) error {
	return m.TouchFn(ctx, session)
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	return m.DeleteFn(ctx, id)
}

func (m *mockStore) GetRefreshToken(
	ctx context.Context,
	id string,
) (string, error) {
	return m.GetRefreshTokenFn(ctx, id)
}

// fakeFlowStatesStore is an in-memory flowstates.Store with the same
// at-most-once consumption guarantee as the real thing.
type fakeFlowStatesStore struct {
	mu         sync.Mutex
	flowStates map[string]authn.FlowState
}

func newFakeFlowStatesStore() *fakeFlowStatesStore {
	return &fakeFlowStatesStore{
		flowStates: map[string]authn.FlowState{},
	}
}

func (f *fakeFlowStatesStore) Create(
	_ context.Context,
	flowState authn.FlowState,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flowStates[flowState.State] = flowState
	return nil
}

func (f *fakeFlowStatesStore) Consume(
	_ context.Context,
	state string,
) (authn.FlowState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	flowState, ok := f.flowStates[state]
	if !ok {
		return authn.FlowState{}, &meta.ErrNotFound{
			Type: "FlowState",
		}
	}
	delete(f.flowStates, state)
	return flowState, nil
}

type mockUsersStore struct {
	UpsertFn func(ctx context.Context, user authn.User) error
	GetFn    func(ctx context.Context, id string) (authn.User, error)
}

func (m *mockUsersStore) Upsert(ctx context.Context, user authn.User) error {
	return m.UpsertFn(ctx, user)
}

func (m *mockUsersStore) Get(
	ctx context.Context,
	id string,
) (authn.User, error) {
	return m.GetFn(ctx, id)
}

type mockIdentityClient struct {
	ExchangeCodeFn func(
		ctx context.Context,
		code string,
		codeVerifier string,
	) (oidc.Tokens, error)
	VerifyIdentityTokenFn func(
		ctx context.Context,
		rawIDToken string,
	) (oidc.Claims, error)
}

func (m *mockIdentityClient) ExchangeCode(
	ctx context.Context,
	code string,
	codeVerifier string,
) (oidc.Tokens, error) {
	return m.ExchangeCodeFn(ctx, code, codeVerifier)
}

func (m *mockIdentityClient) VerifyIdentityToken(
	ctx context.Context,
	rawIDToken string,
) (oidc.Claims, error) {
	return m.VerifyIdentityTokenFn(ctx, rawIDToken)
}

// happyIdentityClient returns a mock identity provider that accepts any code
// and asserts the provided claims.
func happyIdentityClient(claims oidc.Claims) *mockIdentityClient {
	return &mockIdentityClient{
		ExchangeCodeFn: func(
			context.Context,
			string,
			string,
		) (oidc.Tokens, error) {
			return oidc.Tokens{
				RawIDToken:   "fake-id-token",
				RefreshToken: "fake-refresh-token",
			}, nil
		},
		VerifyIdentityTokenFn: func(
			context.Context,
			string,
		) (oidc.Claims, error) {
			return claims, nil
		},
	}
}

func TestServiceInitiate(t *testing.T) {
	flowStatesStore := newFakeFlowStatesStore()
	service := NewService(&mockStore{}, flowStatesStore, nil, nil)
	err := service.Initiate(
		context.Background(),
		"some-state",
		"some-nonce",
		map[string]string{"remoteAddr": "203.0.113.7:54321"},
	)
	require.NoError(t, err)
	flowState, err := flowStatesStore.Consume(context.Background(), "some-state")
	require.NoError(t, err)
	require.Equal(t, "some-nonce", flowState.Nonce)
	require.Equal(t, "203.0.113.7:54321", flowState.Metadata["remoteAddr"])
	require.NotNil(t, flowState.Created)
}

func TestServiceAuthenticate(t *testing.T) {
	var upsertedUser authn.User
	var createdWithIdentity authn.Identity
	var createdWithRefreshToken string
	flowStatesStore := newFakeFlowStatesStore()
	service := NewService(
		&mockStore{
			CreateFn: func(
				_ context.Context,
				identity authn.Identity,
				refreshToken string,
			) (authn.CreatedSession, error) {
				createdWithIdentity = identity
				createdWithRefreshToken = refreshToken
				return authn.CreatedSession{
					ID:        "new-session-id",
					ExpiresIn: 3600,
				}, nil
			},
		},
		flowStatesStore,
		&mockUsersStore{
			UpsertFn: func(_ context.Context, user authn.User) error {
				upsertedUser = user
				return nil
			},
		},
		happyIdentityClient(
			oidc.Claims{
				Subject: "user-aardvark",
				Email:   "aardvark@example.com",
				Name:    "Anna Aardvark",
				Nonce:   "some-nonce",
			},
		),
	)
	err := service.Initiate(
		context.Background(),
		"some-state",
		"some-nonce",
		nil,
	)
	require.NoError(t, err)
	createdSession, err := service.Authenticate(
		context.Background(),
		AuthenticateRequest{
			Code:         "some-code",
			State:        "some-state",
			Nonce:        "some-nonce",
			CodeVerifier: "some-code-verifier",
		},
	)
	require.NoError(t, err)
	require.Equal(t, "new-session-id", createdSession.ID)
	require.Equal(t, int64(3600), createdSession.ExpiresIn)
	require.Equal(t, "user-aardvark", upsertedUser.ID)
	require.Equal(t, "aardvark@example.com", upsertedUser.Email)
	require.NotNil(t, upsertedUser.LastLogin)
	require.Equal(t, "user-aardvark", createdWithIdentity.UserID)
	require.Equal(t, "fake-refresh-token", createdWithRefreshToken)
}

func TestServiceAuthenticateUnknownState(t *testing.T) {
	service := NewService(
		&mockStore{},
		newFakeFlowStatesStore(),
		nil,
		nil,
	)
	_, err := service.Authenticate(
		context.Background(),
		AuthenticateRequest{
			Code:  "some-code",
			State: "never-initiated",
			Nonce: "some-nonce",
		},
	)
	require.Error(t, err)
	require.IsType(t, &meta.ErrInvalidState{}, errors.Cause(err))
}

func TestServiceAuthenticateReplayedState(t *testing.T) {
	flowStatesStore := newFakeFlowStatesStore()
	var sessionCount int
	service := NewService(
		&mockStore{
			CreateFn: func(
				context.Context,
				authn.Identity,
				string,
			) (authn.CreatedSession, error) {
				sessionCount++
				return authn.CreatedSession{}, nil
			},
		},
		flowStatesStore,
		&mockUsersStore{
			UpsertFn: func(context.Context, authn.User) error {
				return nil
			},
		},
		happyIdentityClient(
			oidc.Claims{
				Subject: "user-aardvark",
				Nonce:   "some-nonce",
			},
		),
	)
	err := service.Initiate(
		context.Background(),
		"some-state",
		"some-nonce",
		nil,
	)
	require.NoError(t, err)
	req := AuthenticateRequest{
		Code:         "some-code",
		State:        "some-state",
		Nonce:        "some-nonce",
		CodeVerifier: "some-code-verifier",
	}
	_, err = service.Authenticate(context.Background(), req)
	require.NoError(t, err)
	// The flow state was consumed; replaying the same callback must fail and
	// must not mint a second session
	_, err = service.Authenticate(context.Background(), req)
	require.Error(t, err)
	require.IsType(t, &meta.ErrInvalidState{}, errors.Cause(err))
	require.Equal(t, 1, sessionCount)
}

func TestServiceAuthenticateStoredNonceMismatch(t *testing.T) {
	flowStatesStore := newFakeFlowStatesStore()
	var exchangeCalled bool
	service := NewService(
		&mockStore{},
		flowStatesStore,
		nil,
		&mockIdentityClient{
			ExchangeCodeFn: func(
				context.Context,
				string,
				string,
			) (oidc.Tokens, error) {
				exchangeCalled = true
				return oidc.Tokens{}, nil
			},
		},
	)
	err := service.Initiate(
		context.Background(),
		"some-state",
		"some-nonce",
		nil,
	)
	require.NoError(t, err)
	_, err = service.Authenticate(
		context.Background(),
		AuthenticateRequest{
			Code:  "some-code",
			State: "some-state",
			Nonce: "a-different-nonce",
		},
	)
	require.Error(t, err)
	require.IsType(t, &meta.ErrNonceMismatch{}, errors.Cause(err))
	// The single-use code must not be burned on a flow that already failed
	require.False(t, exchangeCalled)
	// The flow state was still consumed; the attempt cannot be retried
	_, err = flowStatesStore.Consume(context.Background(), "some-state")
	require.Error(t, err)
}

func TestServiceAuthenticateTokenNonceMismatch(t *testing.T) {
	var sessionCreated bool
	service := NewService(
		&mockStore{
			CreateFn: func(
				context.Context,
				authn.Identity,
				string,
			) (authn.CreatedSession, error) {
				sessionCreated = true
				return authn.CreatedSession{}, nil
			},
		},
		newFakeFlowStatesStore(),
		&mockUsersStore{
			UpsertFn: func(context.Context, authn.User) error {
				return nil
			},
		},
		// The token asserts a nonce from some OTHER flow
		happyIdentityClient(
			oidc.Claims{
				Subject: "user-aardvark",
				Nonce:   "somebody-elses-nonce",
			},
		),
	)
	err := service.Initiate(
		context.Background(),
		"some-state",
		"some-nonce",
		nil,
	)
	require.NoError(t, err)
	_, err = service.Authenticate(
		context.Background(),
		AuthenticateRequest{
			Code:  "some-code",
			State: "some-state",
			Nonce: "some-nonce",
		},
	)
	require.Error(t, err)
	require.IsType(t, &meta.ErrNonceMismatch{}, errors.Cause(err))
	require.False(t, sessionCreated)
}

func TestServiceAuthenticateExchangeFails(t *testing.T) {
	service := NewService(
		&mockStore{},
		newFakeFlowStatesStore(),
		nil,
		&mockIdentityClient{
			ExchangeCodeFn: func(
				context.Context,
				string,
				string,
			) (oidc.Tokens, error) {
				return oidc.Tokens{}, &meta.ErrExchangeFailed{}
			},
		},
	)
	err := service.Initiate(
		context.Background(),
		"some-state",
		"some-nonce",
		nil,
	)
	require.NoError(t, err)
	_, err = service.Authenticate(
		context.Background(),
		AuthenticateRequest{
			Code:  "some-code",
			State: "some-state",
			Nonce: "some-nonce",
		},
	)
	require.Error(t, err)
	require.IsType(t, &meta.ErrExchangeFailed{}, errors.Cause(err))
}

func TestServiceAuthenticateTokenVerificationFails(t *testing.T) {
	service := NewService(
		&mockStore{},
		newFakeFlowStatesStore(),
		nil,
		&mockIdentityClient{
			ExchangeCodeFn: func(
				context.Context,
				string,
				string,
			) (oidc.Tokens, error) {
				return oidc.Tokens{
					RawIDToken: "fake-id-token",
				}, nil
			},
			VerifyIdentityTokenFn: func(
				context.Context,
				string,
			) (oidc.Claims, error) {
				return oidc.Claims{}, &meta.ErrInvalidToken{}
			},
		},
	)
	err := service.Initiate(
		context.Background(),
		"some-state",
		"some-nonce",
		nil,
	)
	require.NoError(t, err)
	_, err = service.Authenticate(
		context.Background(),
		AuthenticateRequest{
			Code:  "some-code",
			State: "some-state",
			Nonce: "some-nonce",
		},
	)
	require.Error(t, err)
	require.IsType(t, &meta.ErrInvalidToken{}, errors.Cause(err))
}

func TestServiceGet(t *testing.T) {
	session := authn.NewSession(
		authn.Identity{UserID: "user-aardvark"},
		"sealed",
		time.Hour,
	)
	service := NewService(
		&mockStore{
			GetFn: func(
				_ context.Context,
				id string,
			) (authn.Session, error) {
				require.Equal(t, session.ID, id)
				return session, nil
			},
		},
		nil,
		nil,
		nil,
	)
	retrieved, err := service.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, "user-aardvark", retrieved.UserID)
}

func TestServiceGetNotFound(t *testing.T) {
	service := NewService(
		&mockStore{
			GetFn: func(
				_ context.Context,
				id string,
			) (authn.Session, error) {
				return authn.Session{}, &meta.ErrNotFound{
					Type: "Session",
					ID:   id,
				}
			},
		},
		nil,
		nil,
		nil,
	)
	_, err := service.Get(context.Background(), "nonexistent")
	require.Error(t, err)
	require.IsType(t, &meta.ErrNotFound{}, errors.Cause(err))
}

func TestServiceDelete(t *testing.T) {
	var deletedID string
	service := NewService(
		&mockStore{
			DeleteFn: func(_ context.Context, id string) error {
				deletedID = id
				return nil
			},
		},
		nil,
		nil,
		nil,
	)
	err := service.Delete(context.Background(), "some-session")
	require.NoError(t, err)
	require.Equal(t, "some-session", deletedID)
}
