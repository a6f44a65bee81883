package meta

import (
	"encoding/json"
	"fmt"
)

// ErrAuthentication represents an error asserting a principal's identity.
type ErrAuthentication struct {
	// Reason is a natural language explanation for why authentication failed.
	Reason string `json:"message,omitempty"`
	// Retry indicates whether re-driving the login flow (for instance, by
	// attempting a token refresh) could plausibly succeed. When false, the
	// client must restart authentication from scratch.
	Retry bool `json:"retry"`
}

func (e *ErrAuthentication) Error() string {
	return fmt.Sprintf("Could not authenticate the request: %s", e.Reason)
}

// MarshalJSON amends ErrAuthentication instances with type metadata.
func (e ErrAuthentication) MarshalJSON() ([]byte, error) {
	type Alias ErrAuthentication
	return json.Marshal(
		struct {
			TypeMeta `json:",inline"`
			Alias    `json:",inline"`
		}{
			TypeMeta: TypeMeta{
				APIVersion: APIVersion,
				Kind:       "AuthenticationError",
			},
			Alias: (Alias)(e),
		},
	)
}

// ErrInvalidState represents an error wherein the state parameter presented
// at the conclusion of an OpenID Connect login flow did not correspond to any
// in-progress login. The state was either never issued, has expired, or has
// already been consumed by a previous (possibly replayed) callback.
type ErrInvalidState struct{}

func (e *ErrInvalidState) Error() string {
	return "The supplied login state is invalid, expired, or already used. " +
		"A new login must be initiated."
}

// MarshalJSON amends ErrInvalidState instances with type metadata.
func (e ErrInvalidState) MarshalJSON() ([]byte, error) {
	return json.Marshal(
		struct {
			TypeMeta `json:",inline"`
			Reason   string `json:"message"`
			Retry    bool   `json:"retry"`
		}{
			TypeMeta: TypeMeta{
				APIVersion: APIVersion,
				Kind:       "InvalidStateError",
			},
			Reason: e.Error(),
		},
	)
}

// ErrNonceMismatch represents an error wherein a nonce presented during the
// conclusion of an OpenID Connect login flow-- whether by the caller or
// embedded in the identity token-- did not match the nonce registered when
// the flow was initiated.
type ErrNonceMismatch struct{}

func (e *ErrNonceMismatch) Error() string {
	return "The supplied nonce does not match the nonce registered for this " +
		"login. A new login must be initiated."
}

// MarshalJSON amends ErrNonceMismatch instances with type metadata.
func (e ErrNonceMismatch) MarshalJSON() ([]byte, error) {
	return json.Marshal(
		struct {
			TypeMeta `json:",inline"`
			Reason   string `json:"message"`
			Retry    bool   `json:"retry"`
		}{
			TypeMeta: TypeMeta{
				APIVersion: APIVersion,
				Kind:       "NonceMismatchError",
			},
			Reason: e.Error(),
		},
	)
}

// ErrExchangeFailed represents an error wherein an authorization code could
// not be exchanged for tokens with the identity provider. Authorization codes
// are single-use, so this error is never retried with the same code.
type ErrExchangeFailed struct{}

func (e *ErrExchangeFailed) Error() string {
	return "The authorization code could not be exchanged with the identity " +
		"provider. A new login must be initiated."
}

// MarshalJSON amends ErrExchangeFailed instances with type metadata.
func (e ErrExchangeFailed) MarshalJSON() ([]byte, error) {
	return json.Marshal(
		struct {
			TypeMeta `json:",inline"`
			Reason   string `json:"message"`
			Retry    bool   `json:"retry"`
		}{
			TypeMeta: TypeMeta{
				APIVersion: APIVersion,
				Kind:       "ExchangeFailedError",
			},
			Reason: e.Error(),
		},
	)
}

// ErrInvalidToken represents an error wherein an identity token returned by
// the identity provider failed verification-- a bad signature, the wrong
// audience, or a malformed token.
type ErrInvalidToken struct{}

func (e *ErrInvalidToken) Error() string {
	return "The identity token returned by the identity provider could not " +
		"be verified."
}

// MarshalJSON amends ErrInvalidToken instances with type metadata.
func (e ErrInvalidToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(
		struct {
			TypeMeta `json:",inline"`
			Reason   string `json:"message"`
			Retry    bool   `json:"retry"`
		}{
			TypeMeta: TypeMeta{
				APIVersion: APIVersion,
				Kind:       "InvalidTokenError",
			},
			Reason: e.Error(),
		},
	)
}

// ErrBadRequest represents an error wherein an invalid request has been
// rejected by the API server.
type ErrBadRequest struct {
	// Reason is a natural language explanation for why the request is invalid.
	Reason string `json:"message,omitempty"`
	// Details may further qualify why a request is invalid. For instance, if
	// the Reason field states that request validation failed, the Details
	// field may enumerate specific request schema violations.
	Details []string `json:"details,omitempty"`
}

func (e *ErrBadRequest) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("Bad request: %s", e.Reason)
	}
	msg := fmt.Sprintf("Bad request: %s:", e.Reason)
	for i, detail := range e.Details {
		msg = fmt.Sprintf("%s\n  %d. %s", msg, i, detail)
	}
	return msg
}

// MarshalJSON amends ErrBadRequest instances with type metadata.
func (e ErrBadRequest) MarshalJSON() ([]byte, error) {
	type Alias ErrBadRequest
	return json.Marshal(
		struct {
			TypeMeta `json:",inline"`
			Alias    `json:",inline"`
		}{
			TypeMeta: TypeMeta{
				APIVersion: APIVersion,
				Kind:       "BadRequestError",
			},
			Alias: (Alias)(e),
		},
	)
}

// ErrNotFound represents an error wherein a resource presumed to exist could
// not be located.
type ErrNotFound struct {
	// Type identifies the type of the resource that could not be located.
	Type string `json:"type,omitempty"`
	// ID is the identifier of the resource of type Type that could not be
	// located.
	ID string `json:"id,omitempty"`
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s %q not found.", e.Type, e.ID)
}

// MarshalJSON amends ErrNotFound instances with type metadata.
func (e ErrNotFound) MarshalJSON() ([]byte, error) {
	type Alias ErrNotFound
	return json.Marshal(
		struct {
			TypeMeta `json:",inline"`
			Alias    `json:",inline"`
		}{
			TypeMeta: TypeMeta{
				APIVersion: APIVersion,
				Kind:       "NotFoundError",
			},
			Alias: (Alias)(e),
		},
	)
}

// ErrInternalServer represents a condition wherein the API server has
// encountered an unexpected error that it does not wish to communicate any
// further details of to the client.
type ErrInternalServer struct{}

func (e *ErrInternalServer) Error() string {
	return "An internal server error occurred."
}

// MarshalJSON amends ErrInternalServer instances with type metadata.
func (e ErrInternalServer) MarshalJSON() ([]byte, error) {
	return json.Marshal(
		struct {
			TypeMeta `json:",inline"`
			Reason   string `json:"message"`
		}{
			TypeMeta: TypeMeta{
				APIVersion: APIVersion,
				Kind:       "InternalServerError",
			},
			Reason: e.Error(),
		},
	)
}
