// Package firebase talks to the Firebase Identity Toolkit REST API.
package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ffland/portal/internal/domain"
)

// DefaultBaseURL is the public Identity Toolkit endpoint.
const DefaultBaseURL = "https://identitytoolkit.googleapis.com"

// GoogleProviderID is the Firebase provider id for Google sign-in.
const GoogleProviderID = "google.com"

// Client implements domain.IdentityProvider against the Identity Toolkit.
type Client struct {
	apiKey     string
	baseURL    string
	requestURI string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different Identity Toolkit host, such as
// the auth emulator or a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient = &http.Client{Timeout: d} }
}

// NewClient creates a Client. requestURI is the URI Firebase records as the
// origin of federated sign-ins; the portal's base URL is the usual choice.
func NewClient(apiKey, requestURI string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		requestURI: requestURI,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ domain.IdentityProvider = (*Client)(nil)

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type passwordResponse struct {
	LocalID string `json:"localId"`
	Email   string `json:"email"`
	IDToken string `json:"idToken"`
}

// SignInWithPassword verifies an email/password pair.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (domain.Identity, error) {
	var resp passwordResponse
	err := c.call(ctx, "accounts:signInWithPassword", passwordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}, &resp)
	if err != nil {
		return domain.Identity{}, err
	}
	if resp.LocalID == "" {
		return domain.Identity{}, fmt.Errorf("%w: signInWithPassword returned no localId", domain.ErrMalformedResponse)
	}

	identityEmail := resp.Email
	if identityEmail == "" {
		identityEmail = email
	}
	return domain.Identity{UID: resp.LocalID, Email: identityEmail, IDToken: resp.IDToken}, nil
}

type idpRequest struct {
	PostBody            string `json:"postBody"`
	RequestURI          string `json:"requestUri"`
	ReturnIdpCredential bool   `json:"returnIdpCredential"`
	ReturnSecureToken   bool   `json:"returnSecureToken"`
}

type idpResponse struct {
	ProviderID       string `json:"providerId"`
	LocalID          string `json:"localId"`
	Email            string `json:"email"`
	IDToken          string `json:"idToken"`
	OAuthIDToken     string `json:"oauthIdToken"`
	OAuthAccessToken string `json:"oauthAccessToken"`
}

// SignInWithIdp signs in with a Google ID token. The returned credential is
// nil when Firebase did not echo back a provider credential.
func (c *Client) SignInWithIdp(ctx context.Context, providerIDToken string) (domain.Identity, *domain.Credential, error) {
	body := url.Values{}
	body.Set("id_token", providerIDToken)
	body.Set("providerId", GoogleProviderID)

	var resp idpResponse
	err := c.call(ctx, "accounts:signInWithIdp", idpRequest{
		PostBody:            body.Encode(),
		RequestURI:          c.requestURI,
		ReturnIdpCredential: true,
		ReturnSecureToken:   true,
	}, &resp)
	if err != nil {
		return domain.Identity{}, nil, err
	}
	if resp.LocalID == "" {
		return domain.Identity{}, nil, fmt.Errorf("%w: signInWithIdp returned no localId", domain.ErrMalformedResponse)
	}

	identity := domain.Identity{UID: resp.LocalID, Email: resp.Email, IDToken: resp.IDToken}

	var cred *domain.Credential
	if resp.ProviderID != "" && (resp.OAuthIDToken != "" || resp.OAuthAccessToken != "") {
		cred = &domain.Credential{
			ProviderID:  resp.ProviderID,
			IDToken:     resp.OAuthIDToken,
			AccessToken: resp.OAuthAccessToken,
		}
	}
	return identity, cred, nil
}

// call POSTs a JSON body to an Identity Toolkit method and decodes the answer.
func (c *Client) call(ctx context.Context, method string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	endpoint := fmt.Sprintf("%s/v1/%s?key=%s", c.baseURL, method, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrIdentityUnavailable, method, ctxErr)
		}
		return fmt.Errorf("%w: %s: %w", domain.ErrIdentityUnavailable, method, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %w", domain.ErrIdentityUnavailable, method, err)
	}

	if res.StatusCode != http.StatusOK {
		return classify(res.StatusCode, raw)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", domain.ErrMalformedResponse, method, err)
	}
	return nil
}

// APIError is the error envelope Identity Toolkit returns.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity toolkit: %d %s", e.Status, e.Message)
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// classify turns a non-200 answer into one of the domain error kinds.
func classify(status int, raw []byte) error {
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Error.Message == "" {
		if status >= http.StatusInternalServerError {
			return fmt.Errorf("%w: status %d", domain.ErrIdentityUnavailable, status)
		}
		return fmt.Errorf("%w: status %d with unreadable error body", domain.ErrMalformedResponse, status)
	}

	// Messages look like "TOO_MANY_ATTEMPTS_TRY_LATER : Access to this account...".
	code := strings.TrimSpace(strings.SplitN(env.Error.Message, ":", 2)[0])
	apiErr := &APIError{Status: status, Code: code, Message: env.Error.Message}

	var kind error
	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "INVALID_EMAIL", "MISSING_PASSWORD":
		kind = domain.ErrInvalidCredentials
	case "USER_DISABLED":
		kind = domain.ErrUserDisabled
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		kind = domain.ErrTooManyAttempts
	case "INVALID_IDP_RESPONSE", "INVALID_ID_TOKEN", "FEDERATED_USER_ID_ALREADY_LINKED":
		kind = domain.ErrProviderConnection
	default:
		// Unrecognised codes, 4xx included, are never bad credentials.
		kind = domain.ErrIdentityUnavailable
	}
	return fmt.Errorf("%w: %w", kind, apiErr)
}
