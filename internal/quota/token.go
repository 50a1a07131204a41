package quota

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// ErrBadAdminToken is returned for missing, malformed, or expired capability
// tokens.
var ErrBadAdminToken = errors.New("invalid admin token")

const adminSubject = "quota-admin"

// AdminAuthority issues and verifies short-lived admin capability tokens.
// Admin privilege is the possession of a valid token, not a flag on a
// session: callers exchange the configured admin secret for an HS256 JWT and
// present that on each admin mutation.
type AdminAuthority struct {
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock
}

// NewAdminAuthority creates an authority signing with secret. Tokens expire
// after ttl.
func NewAdminAuthority(secret []byte, ttl time.Duration, clock clockwork.Clock) *AdminAuthority {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AdminAuthority{secret: secret, ttl: ttl, clock: clock}
}

// VerifySecret checks a presented admin secret in constant time.
func (a *AdminAuthority) VerifySecret(presented string) bool {
	return subtle.ConstantTimeCompare(a.secret, []byte(presented)) == 1
}

// Mint issues a capability token for the holder of the admin secret.
func (a *AdminAuthority) Mint() (string, error) {
	now := a.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   adminSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}

// Verify validates a capability token.
func (a *AdminAuthority) Verify(tokenString string) error {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.clock.Now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadAdminToken, err)
	}
	if claims.Subject != adminSubject {
		return ErrBadAdminToken
	}
	return nil
}
