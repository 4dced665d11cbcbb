// Package models holds the server-side domain records.
package models

import "time"

// Account is a registered user. Identity is the email address, unique and
// compared exactly. PasswordHash is an opaque self-describing digest.
type Account struct {
	ID           int64
	Identity     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// LinkedTokens maps platform to token. Only filled by listing calls.
	LinkedTokens map[string]string
}

// Public strips everything that must not leave the server.
func (a *Account) Public() PublicAccount {
	return PublicAccount{ID: a.ID, Identity: a.Identity}
}

// PublicAccount is the view of an account returned to clients.
type PublicAccount struct {
	ID       int64
	Identity string
}
