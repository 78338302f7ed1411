// Package auth verifies bearer tokens and carries the resulting identity
// through request contexts. Identity is re-verified on every request;
// nothing is cached across calls.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned for missing, malformed, or expired credentials.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the verified fact this service consumes: who the caller is
// and until when the credential is valid.
type Identity struct {
	OwnerID   string
	ExpiresAt time.Time
}

// Verifier checks HS256-signed bearer tokens.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a Verifier. The secret must be at least 32 bytes.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("auth secret must be at least 32 characters, got %d", len(secret))
	}
	return &Verifier{secret: []byte(secret), issuer: issuer}, nil
}

// Verify parses and validates a token, returning the caller's identity.
// Any failure collapses to ErrUnauthorized; the caller learns nothing
// about why the credential was rejected.
func (v *Verifier) Verify(token string) (Identity, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return Identity{}, ErrUnauthorized
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrUnauthorized
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, ErrUnauthorized
	}
	if v.issuer != "" {
		iss, err := claims.GetIssuer()
		if err != nil || iss != v.issuer {
			return Identity{}, ErrUnauthorized
		}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return Identity{}, ErrUnauthorized
	}

	return Identity{OwnerID: sub, ExpiresAt: exp.Time}, nil
}

// Mint issues a signed token for an owner. Used by the token CLI command
// and by tests; production token issuance belongs to the external auth
// service.
func (v *Verifier) Mint(ownerID string, ttl time.Duration) (string, error) {
	if ownerID == "" {
		return "", errors.New("owner id is required")
	}
	claims := jwt.MapClaims{
		"sub": ownerID,
		"exp": time.Now().Add(ttl).Unix(),
		"iat": time.Now().Unix(),
	}
	if v.issuer != "" {
		claims["iss"] = v.issuer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
