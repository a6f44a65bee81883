package authn

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/trackdle/trackdle/apiserver/internal/authn"
	"github.com/trackdle/trackdle/apiserver/internal/lib/restmachinery"
	"github.com/trackdle/trackdle/apiserver/internal/meta"
)

// touchTimeout bounds the background last-accessed update so an unhealthy
// store can't pile up goroutines indefinitely.
const touchTimeout = 10 * time.Second

// FindSessionFn is the signature for a function that retrieves a live
// Session by its ID.
type FindSessionFn func(
	ctx context.Context,
	id string,
) (authn.Session, error)

// TouchSessionFn is the signature for a function that updates a Session's
// last-accessed time.
type TouchSessionFn func(ctx context.Context, session authn.Session) error

// DeleteSessionFn is the signature for a function that deletes a Session by
// its ID.
type DeleteSessionFn func(ctx context.Context, id string) error

type sessionAuthFilter struct {
	findSession   FindSessionFn
	touchSession  TouchSessionFn
	deleteSession DeleteSessionFn
}

// NewSessionAuthFilter returns a restmachinery.Filter that authenticates
// inbound requests using the session cookie, attaches the Session to the
// request context, and asynchronously records last access.
func NewSessionAuthFilter(
	findSession FindSessionFn,
	touchSession TouchSessionFn,
	deleteSession DeleteSessionFn,
) restmachinery.Filter {
	return &sessionAuthFilter{
		findSession:   findSession,
		touchSession:  touchSession,
		deleteSession: deleteSession,
	}
}

func (s *sessionAuthFilter) Decorate(handle http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authn.SessionCookieName)
		if err != nil || cookie.Value == "" {
			s.writeResponse(
				w,
				http.StatusUnauthorized,
				&meta.ErrAuthentication{
					Reason: "The session cookie is missing.",
				},
			)
			return
		}
		session, err := s.findSession(r.Context(), cookie.Value)
		if err != nil {
			if _, ok := errors.Cause(err).(*meta.ErrNotFound); ok {
				s.writeResponse(
					w,
					http.StatusUnauthorized,
					&meta.ErrAuthentication{
						Reason: "Session not found. Please log in again.",
						Retry:  true,
					},
				)
				return
			}
			log.Println(err)
			s.writeResponse(
				w,
				http.StatusInternalServerError,
				&meta.ErrInternalServer{},
			)
			return
		}
		// The store already refuses to return dead sessions; this re-check
		// catches a session that expired between tiers or in transit. The
		// durable copy is garbage now, so clean it up on the way out.
		if session.Expired(time.Now()) {
			if err := s.deleteSession(r.Context(), session.ID); err != nil {
				log.Println(
					errors.Wrapf(
						err,
						"error deleting expired session %q",
						session.ID,
					),
				)
			}
			s.writeResponse(
				w,
				http.StatusUnauthorized,
				&meta.ErrAuthentication{
					Reason: "Session expired. Please log in again.",
					Retry:  true,
				},
			)
			return
		}

		// Success! Add the session to the context.
		ctx := authn.ContextWithSession(r.Context(), session)

		// Record last access off the request path. The response must never
		// wait on this, and its failure must never fail the request.
		go func() {
			touchCtx, cancel := context.WithTimeout(
				context.Background(),
				touchTimeout,
			)
			defer cancel()
			if err := s.touchSession(touchCtx, session); err != nil {
				log.Println(
					errors.Wrapf(
						err,
						"error touching session %q",
						session.ID,
					),
				)
			}
		}()

		handle(w, r.WithContext(ctx))
	}
}

func (s *sessionAuthFilter) writeResponse(
	w http.ResponseWriter,
	statusCode int,
	response interface{},
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	responseBody, err := json.Marshal(response)
	if err != nil {
		log.Println(errors.Wrap(err, "error marshaling response body"))
	}
	if _, err := w.Write(responseBody); err != nil {
		log.Println(errors.Wrap(err, "error writing response body"))
	}
}
