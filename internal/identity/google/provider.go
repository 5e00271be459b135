// Package google runs the server side of "Log in with Google": the OAuth 2.0
// authorization-code flow with PKCE, plus token revocation.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/ffland/portal/internal/domain"
)

// DefaultRevokeURL is Google's token revocation endpoint.
const DefaultRevokeURL = "https://oauth2.googleapis.com/revoke"

// Config holds the OAuth client registration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// Endpoint overrides Google's endpoints; zero means google.Endpoint.
	Endpoint  oauth2.Endpoint
	RevokeURL string
	Timeout   time.Duration
}

// Provider starts and completes Google sign-ins.
type Provider struct {
	oauth      *oauth2.Config
	revokeURL  string
	httpClient *http.Client
}

// New creates a Provider from cfg.
func New(cfg Config) *Provider {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = googleoauth.Endpoint
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "email", "profile"}
	}
	revokeURL := cfg.RevokeURL
	if revokeURL == "" {
		revokeURL = DefaultRevokeURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		revokeURL:  revokeURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Flow is the per-attempt state that must survive the round trip to Google.
type Flow struct {
	State    string
	Verifier string
}

// NewFlow creates fresh state and PKCE verifier values.
func NewFlow(state string) Flow {
	return Flow{State: state, Verifier: oauth2.GenerateVerifier()}
}

// AuthCodeURL returns the consent page URL for flow.
func (p *Provider) AuthCodeURL(flow Flow) string {
	return p.oauth.AuthCodeURL(flow.State,
		oauth2.AccessTypeOnline,
		oauth2.S256ChallengeOption(flow.Verifier),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// Exchange trades an authorization code for Google tokens. The ID token is
// required; without it Firebase cannot identify the user.
func (p *Provider) Exchange(ctx context.Context, code string, flow Flow) (domain.FederatedToken, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	tok, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(flow.Verifier))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return domain.FederatedToken{}, fmt.Errorf("%w: code exchange rejected: %w", domain.ErrProviderConnection, err)
		}
		return domain.FederatedToken{}, fmt.Errorf("%w: code exchange: %w", domain.ErrIdentityUnavailable, err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return domain.FederatedToken{}, fmt.Errorf("%w: token response carried no id_token", domain.ErrProviderConnection)
	}

	return domain.FederatedToken{
		IDToken:     idToken,
		AccessToken: tok.AccessToken,
		Expiry:      tok.Expiry,
	}, nil
}

// Revoke invalidates an access token at Google. It is used to undo a sign-in
// the portal could not finish.
func (p *Provider) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke token: unexpected status %d", res.StatusCode)
	}
	return nil
}
