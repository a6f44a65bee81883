package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/trackdle/trackdle/apiserver/internal/authn"
	"github.com/trackdle/trackdle/apiserver/internal/authn/sessions"
	"github.com/trackdle/trackdle/apiserver/internal/lib/crypto"
	"github.com/trackdle/trackdle/apiserver/internal/lib/restmachinery"
	"github.com/xeipuuv/gojsonschema"
)

type authEndpoints struct {
	*restmachinery.BaseEndpoints
	initiateSchemaLoader gojsonschema.JSONLoader
	callbackSchemaLoader gojsonschema.JSONLoader
	service              sessions.Service
}

// NewAuthEndpoints returns the collection of REST API endpoints that drive
// the login flow and the session lifecycle.
func NewAuthEndpoints(
	baseEndpoints *restmachinery.BaseEndpoints,
	service sessions.Service,
) restmachinery.Endpoints {
	return &authEndpoints{
		BaseEndpoints:        baseEndpoints,
		initiateSchemaLoader: gojsonschema.NewBytesLoader(initiateSchemaBytes),
		callbackSchemaLoader: gojsonschema.NewBytesLoader(callbackSchemaBytes),
		service:              service,
	}
}

func (a *authEndpoints) Register(router *mux.Router) {
	// Initiate a login flow
	router.HandleFunc(
		"/auth/initiate",
		a.initiate,
	).Methods(http.MethodPost)

	// Conclude a login flow
	router.HandleFunc(
		"/auth/callback",
		a.callback,
	).Methods(http.MethodPost)

	// Identify the session's user
	router.HandleFunc(
		"/auth/verify",
		a.SessionAuthFilter.Decorate(a.verify),
	).Methods(http.MethodGet)

	// Log out
	router.HandleFunc(
		"/auth/logout",
		a.logout,
	).Methods(http.MethodGet)
}

func (a *authEndpoints) initiate(w http.ResponseWriter, r *http.Request) {
	initiateRequest := struct {
		State string `json:"state"`
		Nonce string `json:"nonce"`
	}{}
	a.ServeRequest(
		restmachinery.InboundRequest{
			W:                   w,
			R:                   r,
			ReqBodySchemaLoader: a.initiateSchemaLoader,
			ReqBodyObj:          &initiateRequest,
			EndpointLogic: func() (interface{}, error) {
				return []byte{}, a.service.Initiate(
					r.Context(),
					initiateRequest.State,
					initiateRequest.Nonce,
					map[string]string{
						"attemptID":  crypto.NewUUID(),
						"remoteAddr": r.RemoteAddr,
					},
				)
			},
			SuccessCode: http.StatusOK,
		},
	)
}

func (a *authEndpoints) callback(w http.ResponseWriter, r *http.Request) {
	callbackRequest := struct {
		Code         string `json:"code"`
		State        string `json:"state"`
		Nonce        string `json:"nonce"`
		CodeVerifier string `json:"code_verifier"`
	}{}
	a.ServeRequest(
		restmachinery.InboundRequest{
			W:                   w,
			R:                   r,
			ReqBodySchemaLoader: a.callbackSchemaLoader,
			ReqBodyObj:          &callbackRequest,
			EndpointLogic: func() (interface{}, error) {
				createdSession, err := a.service.Authenticate(
					r.Context(),
					sessions.AuthenticateRequest{
						Code:         callbackRequest.Code,
						State:        callbackRequest.State,
						Nonce:        callbackRequest.Nonce,
						CodeVerifier: callbackRequest.CodeVerifier,
					},
				)
				if err != nil {
					return nil, err
				}
				// The session ID travels to the client in the cookie only.
				// Headers haven't been flushed yet, so this is safe here.
				authn.SetSessionCookie(
					w,
					createdSession.ID,
					int(createdSession.ExpiresIn),
				)
				return createdSession, nil
			},
			SuccessCode: http.StatusOK,
		},
	)
}

func (a *authEndpoints) verify(w http.ResponseWriter, r *http.Request) {
	a.ServeRequest(
		restmachinery.InboundRequest{
			W: w,
			R: r,
			EndpointLogic: func() (interface{}, error) {
				session, ok := authn.SessionFromContext(r.Context())
				if !ok {
					// The filter always runs ahead of this handler, so a
					// missing session here is a wiring bug, not a client
					// error.
					return nil, errors.New(
						"no session found in request context",
					)
				}
				return struct {
					ID        string `json:"id"`
					Email     string `json:"email"`
					GivenName string `json:"given_name"`
				}{
					ID:        session.UserID,
					Email:     session.Email,
					GivenName: session.Name,
				}, nil
			},
			SuccessCode: http.StatusOK,
		},
	)
}

func (a *authEndpoints) logout(w http.ResponseWriter, r *http.Request) {
	a.ServeRequest(
		restmachinery.InboundRequest{
			W: w,
			R: r,
			EndpointLogic: func() (interface{}, error) {
				// Clear the cookie unconditionally. Logout is idempotent--
				// a client with no live session still deserves a clean
				// slate.
				defer authn.ClearSessionCookie(w)
				cookie, err := r.Cookie(authn.SessionCookieName)
				if err != nil || cookie.Value == "" {
					return []byte{}, nil
				}
				// Deleting an absent session isn't an error, but a failed
				// delete is-- a session that outlives logout is a live
				// credential the user believes revoked.
				if err := a.service.Delete(r.Context(), cookie.Value); err != nil {
					return nil, err
				}
				return []byte{}, nil
			},
			SuccessCode: http.StatusOK,
		},
	)
}
