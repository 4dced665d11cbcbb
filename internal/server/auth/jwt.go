// Package auth issues and verifies HS256 session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrEmptySecret is returned by NewTokenManager when no signing key is set.
var ErrEmptySecret = errors.New("jwt secret is empty")

// DefaultValidity is the session token lifetime.
const DefaultValidity = time.Hour

// Claims is the session token payload. The identity travels as "email".
//
// The registered "exp" claim is a whole number of seconds, rounded up from
// the real expiry; "exp_ns" carries the exact instant in Unix nanoseconds.
type Claims struct {
	AccountID     int64  `json:"account_id"`
	Identity      string `json:"email"`
	ExpiresAtNano int64  `json:"exp_ns,omitempty"`
	jwt.RegisteredClaims
}

// Expiry returns the exact expiry instant, falling back to the registered
// "exp" claim for tokens that do not carry "exp_ns".
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAtNano != 0 {
		return time.Unix(0, c.ExpiresAtNano)
	}
	if c.ExpiresAt != nil {
		return c.ExpiresAt.Time
	}
	return time.Time{}
}

// TokenManager signs and verifies session tokens with a single secret
// loaded at startup.
type TokenManager struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
	denylist Denylist
}

type Option func(*TokenManager)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *TokenManager) { m.now = now }
}

// WithDenylist enables revocation checks in Verify and makes Revoke effective.
func WithDenylist(d Denylist) Option {
	return func(m *TokenManager) { m.denylist = d }
}

func NewTokenManager(secret []byte, validity time.Duration, opts ...Option) (*TokenManager, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if validity <= 0 {
		validity = DefaultValidity
	}

	m := &TokenManager{
		secret:   secret,
		validity: validity,
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Validity reports how long issued tokens stay valid.
func (m *TokenManager) Validity() time.Duration { return m.validity }

// Issue returns a signed token for the account and the instant it expires.
func (m *TokenManager) Issue(accountID int64, identity string) (string, time.Time, error) {
	iat := m.now().Round(0)
	exp := iat.Add(m.validity)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		AccountID: accountID,
		Identity:  identity,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(ceilSecond(exp)),
		},
		ExpiresAtNano: exp.UnixNano(),
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, exp, nil
}

// Verify checks signature, algorithm and validity window of token and, if a
// denylist is configured, whether it was revoked. Returned errors are one of
// common.ErrMalformedToken, common.ErrInvalidToken, common.ErrTokenExpired,
// common.ErrTokenRevoked, or a wrapped denylist failure.
func (m *TokenManager) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, common.ErrMalformedToken
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, common.ErrTokenExpired
		default:
			return nil, common.ErrInvalidToken
		}
	}

	if claims.AccountID <= 0 || claims.Identity == "" || claims.ID == "" {
		return nil, common.ErrInvalidToken
	}

	// the parser only checks "exp" to the second
	if !m.now().Before(claims.Expiry()) {
		return nil, common.ErrTokenExpired
	}

	if m.denylist != nil {
		revoked, err := m.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("denylist lookup: %w", err)
		}
		if revoked {
			return nil, common.ErrTokenRevoked
		}
	}

	return claims, nil
}

// RevocationEnabled reports whether Revoke has any effect.
func (m *TokenManager) RevocationEnabled() bool { return m.denylist != nil }

// Revoke denylists the token until its natural expiry. Without a denylist
// it is a no-op.
func (m *TokenManager) Revoke(ctx context.Context, claims *Claims) error {
	if m.denylist == nil || claims == nil {
		return nil
	}

	until := claims.Expiry()
	if until.IsZero() {
		until = m.now().Add(m.validity)
	}
	return m.denylist.Revoke(ctx, claims.ID, until)
}

func ceilSecond(t time.Time) time.Time {
	if c := t.Truncate(time.Second); !c.Equal(t) {
		return c.Add(time.Second)
	}
	return t
}
