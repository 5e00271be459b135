package domain

import (
	"context"
	"time"
)

// Credentials is the email/password pair submitted on the login form.
// It is bound from the request and never persisted.
type Credentials struct {
	Email        string `form:"email" validate:"required,email"`
	Password     string `form:"password" validate:"required"`
	StayLoggedIn bool   `form:"stay_logged_in"`
}

// Identity is the user as the identity provider knows them.
// Tokens are only held for the life of a single login attempt.
type Identity struct {
	UID     string
	Email   string
	IDToken string
}

// Credential is the federated credential returned alongside an Identity by a
// third-party sign-in. A missing credential means the provider round trip did
// not actually complete.
type Credential struct {
	ProviderID  string
	IDToken     string
	AccessToken string
}

// Valid reports whether the provider handed back a usable credential.
func (c *Credential) Valid() bool {
	return c != nil && c.ProviderID != "" && (c.IDToken != "" || c.AccessToken != "")
}

// SessionRecord is what the rest of the application reads to know who is
// signed in.
type SessionRecord struct {
	Email string `json:"email"`
	UID   string `json:"uid"`
}

// Scope selects where a SessionRecord is persisted.
type Scope int

const (
	// ScopeEphemeral lives until the browser session ends.
	ScopeEphemeral Scope = iota
	// ScopeDurable survives browser restarts.
	ScopeDurable
)

func (s Scope) String() string {
	if s == ScopeDurable {
		return "durable"
	}
	return "ephemeral"
}

// ScopeFor maps the "stay logged in" choice to a persistence scope.
func ScopeFor(stayLoggedIn bool) Scope {
	if stayLoggedIn {
		return ScopeDurable
	}
	return ScopeEphemeral
}

// IdentityProvider is the hosted identity service.
type IdentityProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (Identity, error)
	// SignInWithIdp exchanges a third-party ID token for an Identity.
	SignInWithIdp(ctx context.Context, providerIDToken string) (Identity, *Credential, error)
}

// Directory is the backend user directory that owns profile documents.
type Directory interface {
	UserExists(ctx context.Context, uid string) (bool, error)
	GetProfile(ctx context.Context, uid string) (Profile, error)
}

// FederatedToken is what the OAuth exchange with a third party yields.
type FederatedToken struct {
	IDToken     string
	AccessToken string
	Expiry      time.Time
}
