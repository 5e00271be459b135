package domain

import "errors"

// Sentinel errors for the login flow. Collaborators wrap one of these and
// callers match with errors.Is.
var (
	// ErrInvalidCredentials indicates the identity provider rejected the
	// email/password combination.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserDisabled indicates the account exists but was disabled upstream.
	ErrUserDisabled = errors.New("user account disabled")

	// ErrTooManyAttempts indicates the identity provider is throttling the account.
	ErrTooManyAttempts = errors.New("too many attempts")

	// ErrIdentityUnavailable covers transport failures and 5xx answers from
	// the identity provider.
	ErrIdentityUnavailable = errors.New("identity provider unavailable")

	// ErrMalformedResponse indicates a collaborator answered with a body we
	// could not understand.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrProviderConnection indicates a federated sign-in returned no credential.
	ErrProviderConnection = errors.New("could not connect to provider")

	// ErrUserNotFound indicates the directory has no record for a uid.
	ErrUserNotFound = errors.New("user not found")

	// ErrProfileUnavailable indicates the profile document could not be fetched.
	ErrProfileUnavailable = errors.New("profile unavailable")

	// ErrSessionPersist indicates the session could not be written.
	ErrSessionPersist = errors.New("session could not be persisted")
)
