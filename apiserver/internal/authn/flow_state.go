package authn

import "time"

// FlowState represents one in-progress login attempt. It is keyed by the
// state parameter the client will round-trip through the identity provider
// and records the nonce that must reappear inside the identity token the
// provider eventually returns.
type FlowState struct {
	// State is the CSRF correlation token for this login attempt. It is the
	// lookup key and is not duplicated into the stored value.
	State string `json:"-"`
	// Nonce is the anti-replay value registered for this login attempt.
	Nonce string `json:"nonce"`
	// Metadata optionally carries audit attributes of the login attempt,
	// such as the originating network address.
	Metadata map[string]string `json:"metadata,omitempty"`
	// Created indicates the time at which the login attempt was initiated.
	Created *time.Time `json:"created,omitempty"`
}

// NewFlowState returns a FlowState for a newly initiated login attempt.
func NewFlowState(
	state string,
	nonce string,
	metadata map[string]string,
) FlowState {
	now := time.Now()
	return FlowState{
		State:    state,
		Nonce:    nonce,
		Metadata: metadata,
		Created:  &now,
	}
}
