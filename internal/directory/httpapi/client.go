// Package httpapi is the directory adapter for the FF Land backend REST API.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ffland/portal/internal/directory"
	"github.com/ffland/portal/internal/domain"
)

const backend = "http"

// Client calls the backend's user endpoints:
//
//	GET {base}/users/{uid}/exists -> {"exists": bool}
//	GET {base}/users/{uid}        -> {"uid", "email", "calculatorStorage": {...}}
type Client struct {
	baseURL    string
	secret     []byte
	tokenTTL   time.Duration
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a Client. secret signs the bearer token sent with every call.
func NewClient(baseURL string, secret []byte, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
		tokenTTL:   time.Minute,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

var _ domain.Directory = (*Client)(nil)

type existsResponse struct {
	Exists bool `json:"exists"`
}

// UserExists asks the backend whether uid has a user record.
func (c *Client) UserExists(ctx context.Context, uid string) (bool, error) {
	raw, status, err := c.get(ctx, uid, "/users/"+url.PathEscape(uid)+"/exists")
	if err != nil {
		return false, directory.NewError(backend, "user exists", uid, err)
	}
	if status == http.StatusNotFound {
		return false, nil
	}
	if status != http.StatusOK {
		return false, directory.NewError(backend, "user exists", uid, fmt.Errorf("unexpected status %d", status))
	}

	var resp existsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return false, directory.NewError(backend, "user exists", uid, fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err))
	}
	return resp.Exists, nil
}

type userResponse struct {
	UID               string          `json:"uid"`
	Email             string          `json:"email"`
	CalculatorStorage json.RawMessage `json:"calculatorStorage"`
}

// GetProfile fetches the user document and returns its calculator storage.
func (c *Client) GetProfile(ctx context.Context, uid string) (domain.Profile, error) {
	raw, status, err := c.get(ctx, uid, "/users/"+url.PathEscape(uid))
	if err != nil {
		return nil, directory.NewError(backend, "get profile", uid, err)
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, directory.NotFound(backend, "get profile", uid)
	default:
		return nil, directory.NewError(backend, "get profile", uid, fmt.Errorf("unexpected status %d", status))
	}

	var resp userResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, directory.NewError(backend, "get profile", uid, fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err))
	}
	if len(resp.CalculatorStorage) == 0 {
		return nil, directory.NewError(backend, "get profile", uid, fmt.Errorf("%w: calculatorStorage missing", domain.ErrMalformedResponse))
	}

	p, err := domain.DecodeProfile(resp.CalculatorStorage)
	if err != nil {
		return nil, directory.NewError(backend, "get profile", uid, fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err))
	}
	return p, nil
}

func (c *Client) get(ctx context.Context, uid, path string) ([]byte, int, error) {
	token, err := MintServiceToken(uid, c.secret, c.tokenTTL, c.now())
	if err != nil {
		return nil, 0, fmt.Errorf("mint service token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return raw, res.StatusCode, nil
}
