package httpapi

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenIssuer identifies the portal as the minting service.
	TokenIssuer = "ffland-portal"
	// TokenAudience is the service the token is good for.
	TokenAudience = "ffland-directory"
)

// ErrInvalidToken is returned by VerifyServiceToken for unusable tokens.
var ErrInvalidToken = errors.New("invalid service token")

// ServiceClaims are the claims of a portal-to-directory bearer token.
// The subject is the uid the call is about.
type ServiceClaims struct {
	jwt.RegisteredClaims
}

// MintServiceToken signs a short-lived HS256 token scoped to uid.
func MintServiceToken(uid string, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Subject:   uid,
			Audience:  jwt.ClaimStrings{TokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(secret)
}

// VerifyServiceToken checks signature, issuer, audience and expiry and
// returns the uid the token was minted for. The directory service side uses
// it; the portal uses it in tests.
func VerifyServiceToken(tokenString string, secret []byte) (string, error) {
	claims := &ServiceClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
