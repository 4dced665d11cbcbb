// Package accounts is the credential store: account records plus the
// per-platform linked token side table.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/linkkeeper/internal/server/models"
)

// Repository persists accounts and their linked tokens. Every method
// returns common.ErrorNotFound when the account does not exist.
type Repository interface {
	// Create inserts a new account; a taken identity yields common.ErrorConflict.
	Create(ctx context.Context, identity, passwordHash string) (*models.Account, error)
	GetByIdentity(ctx context.Context, identity string) (*models.Account, error)
	// UpdatePasswordHash replaces the digest only while the stored one still
	// equals previousHash; otherwise it returns common.ErrorNotFound.
	UpdatePasswordHash(ctx context.Context, identity, previousHash, passwordHash string) error

	// SetLinkedToken inserts or replaces the token for platform.
	SetLinkedToken(ctx context.Context, identity, platform, token string) error
	// GetLinkedToken returns common.ErrorNotFound when nothing is linked.
	GetLinkedToken(ctx context.Context, identity, platform string) (string, error)
	// DeleteLinkedToken is idempotent for an existing account.
	DeleteLinkedToken(ctx context.Context, identity, platform string) error
	ListLinkedTokens(ctx context.Context, identity string) (map[string]string, error)
	// ListLinkedStatus reports, for every requested platform, whether a
	// token is stored.
	ListLinkedStatus(ctx context.Context, identity string, platforms []string) (map[string]bool, error)
}
