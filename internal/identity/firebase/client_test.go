package firebase_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/ffland/portal/internal/domain"
	"github.com/ffland/portal/internal/identity/firebase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newToolkit starts a fake Identity Toolkit that answers every call with handler.
func newToolkit(t *testing.T, handler http.HandlerFunc) *firebase.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return firebase.NewClient("test-key", "http://localhost:8080", firebase.WithBaseURL(srv.URL))
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": status, "message": message},
	})
}

func TestSignInWithPassword(t *testing.T) {
	t.Run("returns the identity on success", func(t *testing.T) {
		client := newToolkit(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/accounts:signInWithPassword", r.URL.Path)
			assert.Equal(t, "test-key", r.URL.Query().Get("key"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "ada@example.com", body["email"])
			assert.Equal(t, "hunter22", body["password"])
			assert.Equal(t, true, body["returnSecureToken"])

			_ = json.NewEncoder(w).Encode(map[string]any{
				"localId": "uid-123",
				"email":   "ada@example.com",
				"idToken": "id-token",
			})
		})

		identity, err := client.SignInWithPassword(context.Background(), "ada@example.com", "hunter22")
		require.NoError(t, err)
		assert.Equal(t, domain.Identity{UID: "uid-123", Email: "ada@example.com", IDToken: "id-token"}, identity)
	})

	errorCases := []struct {
		name    string
		status  int
		message string
		want    error
	}{
		{"wrong password", http.StatusBadRequest, "INVALID_PASSWORD", domain.ErrInvalidCredentials},
		{"unknown email", http.StatusBadRequest, "EMAIL_NOT_FOUND", domain.ErrInvalidCredentials},
		{"combined credentials code", http.StatusBadRequest, "INVALID_LOGIN_CREDENTIALS", domain.ErrInvalidCredentials},
		{"disabled account", http.StatusBadRequest, "USER_DISABLED", domain.ErrUserDisabled},
		{"throttled", http.StatusBadRequest, "TOO_MANY_ATTEMPTS_TRY_LATER : Access to this account has been temporarily disabled", domain.ErrTooManyAttempts},
		{"server error", http.StatusServiceUnavailable, "BACKEND_ERROR", domain.ErrIdentityUnavailable},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newToolkit(t, func(w http.ResponseWriter, r *http.Request) {
				writeError(w, tc.status, tc.message)
			})

			_, err := client.SignInWithPassword(context.Background(), "ada@example.com", "nope")
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)

			var apiErr *firebase.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.status, apiErr.Status)
		})
	}

	t.Run("unknown 4xx code is not reported as bad credentials", func(t *testing.T) {
		client := newToolkit(t, func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusBadRequest, "OPERATION_NOT_ALLOWED")
		})

		_, err := client.SignInWithPassword(context.Background(), "ada@example.com", "pw")
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)
		assert.ErrorIs(t, err, domain.ErrIdentityUnavailable)

		var apiErr *firebase.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "OPERATION_NOT_ALLOWED", apiErr.Code)
	})

	t.Run("garbage body is a malformed response", func(t *testing.T) {
		client := newToolkit(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>oops</html>"))
		})

		_, err := client.SignInWithPassword(context.Background(), "ada@example.com", "pw")
		assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	})

	t.Run("missing localId is a malformed response", func(t *testing.T) {
		client := newToolkit(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"email":"ada@example.com"}`))
		})

		_, err := client.SignInWithPassword(context.Background(), "ada@example.com", "pw")
		assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	})

	t.Run("network failure is never bad credentials", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()
		client := firebase.NewClient("k", "http://localhost", firebase.WithBaseURL(srv.URL), firebase.WithTimeout(time.Second))

		_, err := client.SignInWithPassword(context.Background(), "ada@example.com", "pw")
		assert.ErrorIs(t, err, domain.ErrIdentityUnavailable)
		assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)
	})
}

func TestSignInWithIdp(t *testing.T) {
	t.Run("returns identity and credential", func(t *testing.T) {
		client := newToolkit(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/accounts:signInWithIdp", r.URL.Path)

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			post, err := url.ParseQuery(body["postBody"].(string))
			require.NoError(t, err)
			assert.Equal(t, "google-id-token", post.Get("id_token"))
			assert.Equal(t, firebase.GoogleProviderID, post.Get("providerId"))
			assert.Equal(t, "http://localhost:8080", body["requestUri"])

			_ = json.NewEncoder(w).Encode(map[string]any{
				"providerId":       "google.com",
				"localId":          "uid-g",
				"email":            "grace@example.com",
				"oauthIdToken":     "google-id-token",
				"oauthAccessToken": "google-access",
			})
		})

		identity, cred, err := client.SignInWithIdp(context.Background(), "google-id-token")
		require.NoError(t, err)
		assert.Equal(t, "uid-g", identity.UID)
		assert.Equal(t, "grace@example.com", identity.Email)
		require.NotNil(t, cred)
		assert.True(t, cred.Valid())
		assert.Equal(t, "google-access", cred.AccessToken)
	})

	t.Run("no credential when provider tokens are absent", func(t *testing.T) {
		client := newToolkit(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"localId":"uid-g","email":"grace@example.com"}`))
		})

		identity, cred, err := client.SignInWithIdp(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, "uid-g", identity.UID)
		assert.Nil(t, cred)
	})

	t.Run("rejected id token maps to provider connection", func(t *testing.T) {
		client := newToolkit(t, func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusBadRequest, "INVALID_IDP_RESPONSE : Invalid Idp Response")
		})

		_, _, err := client.SignInWithIdp(context.Background(), "tok")
		assert.ErrorIs(t, err, domain.ErrProviderConnection)
	})
}
