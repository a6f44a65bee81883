package oidc

import (
	"context"
	"log"
	"time"

	"github.com/coreos/go-oidc"
	"github.com/pkg/errors"
	"github.com/trackdle/trackdle/apiserver/internal/meta"
	"golang.org/x/oauth2"
)

// Tokens encapsulates the tokens obtained by exchanging an authorization
// code with the identity provider.
type Tokens struct {
	// RawIDToken is the identity token in its compact serialized form. It is
	// not to be trusted until verified.
	RawIDToken string
	// RefreshToken is the refresh token issued alongside the identity token.
	// Providers may omit it.
	RefreshToken string
}

// Claims encapsulates the verified claims extracted from an identity token.
type Claims struct {
	// Subject is the stable identifier the provider assigned to the user.
	Subject string
	// Email is the user's email address.
	Email string
	// Name is the user's display name.
	Name string
	// Nonce is the anti-replay value the provider embedded in the token. It
	// must match the nonce registered when the login flow was initiated.
	Nonce string
}

// Client is the specialized interface for completing the code-for-tokens leg
// of an OpenID Connect login against the identity provider.
type Client interface {
	// ExchangeCode exchanges an authorization code (bound to the provided
	// PKCE code verifier) for tokens. Authorization codes are single-use, so
	// implementations MUST NOT retry; any transport or provider-side
	// rejection yields a *meta.ErrExchangeFailed.
	ExchangeCode(
		ctx context.Context,
		code string,
		codeVerifier string,
	) (Tokens, error)
	// VerifyIdentityToken cryptographically verifies an identity token's
	// signature and audience against the provider's published keys and
	// returns its claims. Any verification failure yields a
	// *meta.ErrInvalidToken.
	VerifyIdentityToken(
		ctx context.Context,
		rawIDToken string,
	) (Claims, error)
}

type client struct {
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	timeout      time.Duration
}

// NewClient returns a Client that speaks to the identity provider described
// by the provided OAuth2 configuration. The expected audience of identity
// tokens is bound into the provided verifier. Every provider call is bounded
// by the provided timeout.
func NewClient(
	oauth2Config *oauth2.Config,
	verifier *oidc.IDTokenVerifier,
	timeout time.Duration,
) Client {
	return &client{
		oauth2Config: oauth2Config,
		verifier:     verifier,
		timeout:      timeout,
	}
}

func (c *client) ExchangeCode(
	ctx context.Context,
	code string,
	codeVerifier string,
) (Tokens, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	// A timed-out exchange is NOT retried; most providers will have
	// invalidated the code on first presentation anyway.
	oauth2Token, err := c.oauth2Config.Exchange(
		ctx,
		code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		log.Println(
			errors.Wrap(err, "error exchanging authorization code for tokens"),
		)
		return Tokens{}, &meta.ErrExchangeFailed{}
	}
	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		log.Println(
			errors.New("token response did not include an identity token"),
		)
		return Tokens{}, &meta.ErrExchangeFailed{}
	}
	return Tokens{
		RawIDToken:   rawIDToken,
		RefreshToken: oauth2Token.RefreshToken,
	}, nil
}

func (c *client) VerifyIdentityToken(
	ctx context.Context,
	rawIDToken string,
) (Claims, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		log.Println(errors.Wrap(err, "error verifying identity token"))
		return Claims{}, &meta.ErrInvalidToken{}
	}
	claims := struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}{}
	if err = idToken.Claims(&claims); err != nil {
		log.Println(errors.Wrap(err, "error decoding identity token claims"))
		return Claims{}, &meta.ErrInvalidToken{}
	}
	return Claims{
		Subject: idToken.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Nonce:   idToken.Nonce,
	}, nil
}
