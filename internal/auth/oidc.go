package auth

import (
	"context"
	"fmt"

	"go-storefront/internal/config"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Authenticator is a struct that holds the OIDC provider, OAuth2 config, and ID token verifier.
type Authenticator struct {
	*oidc.Provider
	*oauth2.Config
	*oidc.IDTokenVerifier
	defaultRole Role
}

// Claims are the ID token claims used to build an Identity.
type Claims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// NewAuthenticator creates a new Authenticator by setting up the OIDC provider
// and OAuth2 configuration based on the application's config.
func NewAuthenticator(ctx context.Context, cfg config.OIDCConfig) (*Authenticator, error) {
	// Use the OIDC discovery endpoint to get the provider configuration.
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover oidc provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	role := ParseRole(cfg.DefaultRole)
	if role == RoleAnonymous {
		role = RoleCustomer
	}

	return &Authenticator{
		Provider:        provider,
		Config:          oauth2Config,
		IDTokenVerifier: verifier,
		defaultRole:     role,
	}, nil
}

// IdentityFromToken exchanges an authorization code and verifies the ID
// token it carries. Signed-in SSO users get the configured default role.
func (a *Authenticator) IdentityFromToken(ctx context.Context, code string) (Identity, error) {
	token, err := a.Exchange(ctx, code)
	if err != nil {
		return Anonymous, fmt.Errorf("failed to exchange token: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return Anonymous, fmt.Errorf("no id_token field in oauth2 token")
	}
	idToken, err := a.Verify(ctx, rawIDToken)
	if err != nil {
		return Anonymous, fmt.Errorf("failed to verify ID token: %w", err)
	}
	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return Anonymous, fmt.Errorf("failed to read ID token claims: %w", err)
	}
	if claims.Email == "" || !claims.EmailVerified {
		return Anonymous, fmt.Errorf("id token for %s has no verified email", claims.Subject)
	}
	return Identity{Email: claims.Email, Name: claims.Name, Role: a.defaultRole}, nil
}
