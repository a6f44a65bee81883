package meta

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// Clients drive their login UX off the message and retry fields of 401
// bodies, so their shape is a contract.
func TestAuthnErrorBodies(t *testing.T) {
	testCases := []struct {
		name  string
		err   error
		kind  string
		retry bool
	}{
		{
			name: "authentication error",
			err: &ErrAuthentication{
				Reason: "Session expired.",
				Retry:  true,
			},
			kind:  "AuthenticationError",
			retry: true,
		},
		{
			name:  "invalid state",
			err:   &ErrInvalidState{},
			kind:  "InvalidStateError",
			retry: false,
		},
		{
			name:  "nonce mismatch",
			err:   &ErrNonceMismatch{},
			kind:  "NonceMismatchError",
			retry: false,
		},
		{
			name:  "exchange failed",
			err:   &ErrExchangeFailed{},
			kind:  "ExchangeFailedError",
			retry: false,
		},
		{
			name:  "invalid token",
			err:   &ErrInvalidToken{},
			kind:  "InvalidTokenError",
			retry: false,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			bodyBytes, err := json.Marshal(testCase.err)
			require.NoError(t, err)
			body := struct {
				Kind       string `json:"kind"`
				APIVersion string `json:"apiVersion"`
				Message    string `json:"message"`
				Retry      bool   `json:"retry"`
			}{}
			require.NoError(t, json.Unmarshal(bodyBytes, &body))
			require.Equal(t, testCase.kind, body.Kind)
			require.Equal(t, APIVersion, body.APIVersion)
			require.NotEmpty(t, body.Message)
			require.Equal(t, testCase.retry, body.Retry)
		})
	}
}
