package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shiftsense/client-core/internal/domain"
)

var (
	ErrMalformedToken = errors.New("malformed token")
	ErrNoExpiryClaim  = errors.New("token has no expiry claim")
)

type tokenClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenInfo is what the client can read out of a bearer token without
// talking to the server.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time
	Role      domain.Role
}

// Inspect decodes the token's claims locally. The signature is not
// verified: the server is the authority on token integrity, the client
// only needs the expiry to decide whether the session is worth keeping.
func Inspect(raw string) (*TokenInfo, error) {
	claims := &tokenClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if claims.ExpiresAt == nil {
		return nil, ErrNoExpiryClaim
	}
	return &TokenInfo{
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
		Role:      domain.Role(claims.Role),
	}, nil
}
