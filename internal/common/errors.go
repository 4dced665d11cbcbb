// Package common defines shared constants and sentinel errors used across
// server and client layers of linkkeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Service-level errors. Every failure leaving the account service maps
	// to exactly one of these.
	ErrorValidation   = errors.New("validation error")
	ErrorConflict     = errors.New("already exists")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorNotFound     = errors.New("not found")
	ErrorInternal     = errors.New("internal error")

	// Token errors. They never leave the auth gate; clients only see
	// ErrorUnauthorized.
	ErrInvalidToken   = errors.New("invalid token")
	ErrMalformedToken = errors.New("malformed token")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenRevoked   = errors.New("token revoked")
)
