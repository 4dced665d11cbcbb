// Package services contains server-side business logic. AccountService
// handles registration, login, session tokens and the per-platform linked
// tokens of an account.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/common"
	"github.com/dmitrijs2005/linkkeeper/internal/cryptox"
	"github.com/dmitrijs2005/linkkeeper/internal/dbx"
	"github.com/dmitrijs2005/linkkeeper/internal/logging"
	"github.com/dmitrijs2005/linkkeeper/internal/server/auth"
	"github.com/dmitrijs2005/linkkeeper/internal/server/models"
	"github.com/dmitrijs2005/linkkeeper/internal/server/repositories/repomanager"
)

// PasswordHasher is satisfied by *cryptox.PooledHasher.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, digest string) (bool, error)
}

// Session is what a successful login hands back to the client.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

const maxIdentityLen = 254

var platformRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,31}$`)

// AccountService implements the account operations. Every error it returns
// matches exactly one of common.ErrorValidation, common.ErrorConflict,
// common.ErrorUnauthorized, common.ErrorNotFound or common.ErrorInternal.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	tokens      *auth.TokenManager
	platforms   []string
	logger      logging.Logger

	dummyMu     sync.Mutex
	dummyDigest string
}

// NewAccountService wires the service. platforms is the list reported by
// GetLinkedStatus when the caller asks for none in particular.
func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, hasher PasswordHasher,
	tokens *auth.TokenManager, platforms []string, logger logging.Logger) *AccountService {
	if len(platforms) == 0 {
		platforms = common.DefaultPlatforms
	}
	return &AccountService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		tokens:      tokens,
		platforms:   platforms,
		logger:      logger,
	}
}

// Platforms returns the configured platform list.
func (s *AccountService) Platforms() []string { return s.platforms }

// Register creates an account. The password is only ever stored hashed.
func (s *AccountService) Register(ctx context.Context, identity, password string) (*models.PublicAccount, error) {
	if identity == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrorValidation)
	}
	if !validIdentity(identity) {
		return nil, fmt.Errorf("%w: malformed email", common.ErrorValidation)
	}

	repo := s.repomanager.Accounts(s.db)

	// Fast path only; the UNIQUE constraint decides concurrent registrations.
	if _, err := repo.GetByIdentity(ctx, identity); err == nil {
		return nil, common.ErrorConflict
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, s.internal(ctx, "lookup account", err)
	}

	digest, err := s.hasher.Hash(ctx, password)
	if err != nil {
		if errors.Is(err, cryptox.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: password too long", common.ErrorValidation)
		}
		return nil, s.internal(ctx, "hash password", err)
	}

	a, err := repo.Create(ctx, identity, digest)
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, common.ErrorConflict
		}
		return nil, s.internal(ctx, "create account", err)
	}

	s.logger.Info(ctx, "account registered", "account_id", a.ID)

	pub := a.Public()
	return &pub, nil
}

// Login checks credentials and issues a session token. Unknown identities
// and wrong passwords fail identically.
func (s *AccountService) Login(ctx context.Context, identity, password string) (*Session, error) {
	if identity == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrorValidation)
	}

	repo := s.repomanager.Accounts(s.db)

	a, err := repo.GetByIdentity(ctx, identity)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, s.internal(ctx, "lookup account", err)
		}
		// burn the same hashing time as a real check
		if digest := s.dummy(ctx); digest != "" {
			_, _ = s.hasher.Verify(ctx, password, digest)
		}
		return nil, common.ErrorUnauthorized
	}

	ok, err := s.hasher.Verify(ctx, password, a.PasswordHash)
	if err != nil {
		return nil, s.internal(ctx, "verify password", err)
	}
	if !ok {
		return nil, common.ErrorUnauthorized
	}

	token, exp, err := s.tokens.Issue(a.ID, a.Identity)
	if err != nil {
		return nil, s.internal(ctx, "issue token", err)
	}

	return &Session{Token: token, ExpiresAt: exp}, nil
}

// LinkAccount stores token for platform, replacing any previous one.
func (s *AccountService) LinkAccount(ctx context.Context, identity, platform, token string) (string, error) {
	p, err := normalizePlatform(platform)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("%w: platform and token are required", common.ErrorValidation)
	}

	repo := s.repomanager.Accounts(s.db)
	if err := repo.SetLinkedToken(ctx, identity, p, token); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorNotFound
		}
		return "", s.internal(ctx, "link account", err)
	}

	return p, nil
}

// UnlinkAccount removes the token for platform. Unlinking a platform that
// was never linked succeeds.
func (s *AccountService) UnlinkAccount(ctx context.Context, identity, platform string) (string, error) {
	p, err := normalizePlatform(platform)
	if err != nil {
		return "", err
	}

	repo := s.repomanager.Accounts(s.db)
	if err := repo.DeleteLinkedToken(ctx, identity, p); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorNotFound
		}
		return "", s.internal(ctx, "unlink account", err)
	}

	return p, nil
}

// GetLinkedStatus reports which platforms have a stored token. With no
// platforms given, the configured list is used. Tokens are never returned.
func (s *AccountService) GetLinkedStatus(ctx context.Context, identity string, platforms ...string) (map[string]bool, error) {
	if len(platforms) == 0 {
		platforms = s.platforms
	}

	normalized := make([]string, 0, len(platforms))
	for _, p := range platforms {
		n, err := normalizePlatform(p)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, n)
	}

	repo := s.repomanager.Accounts(s.db)
	status, err := repo.ListLinkedStatus(ctx, identity, normalized)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.internal(ctx, "linked status", err)
	}

	return status, nil
}

// GetLinkedToken returns the normalized platform name and the stored token
// for one platform of the account.
func (s *AccountService) GetLinkedToken(ctx context.Context, identity, platform string) (string, string, error) {
	p, err := normalizePlatform(platform)
	if err != nil {
		return "", "", err
	}

	repo := s.repomanager.Accounts(s.db)
	token, err := repo.GetLinkedToken(ctx, identity, p)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", "", common.ErrorNotFound
		}
		return "", "", s.internal(ctx, "get linked token", err)
	}

	return p, token, nil
}

// GetLinkedTokens returns every stored token of the account.
func (s *AccountService) GetLinkedTokens(ctx context.Context, identity string) (map[string]string, error) {
	repo := s.repomanager.Accounts(s.db)
	tokens, err := repo.ListLinkedTokens(ctx, identity)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.internal(ctx, "list linked tokens", err)
	}

	return tokens, nil
}

// ChangePassword replaces the password after checking the current one.
// Sessions issued before the change stay valid until they expire.
func (s *AccountService) ChangePassword(ctx context.Context, identity, current, next string) error {
	if current == "" || next == "" {
		return fmt.Errorf("%w: current and new password are required", common.ErrorValidation)
	}

	repo := s.repomanager.Accounts(s.db)

	a, err := repo.GetByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorUnauthorized
		}
		return s.internal(ctx, "lookup account", err)
	}

	ok, err := s.hasher.Verify(ctx, current, a.PasswordHash)
	if err != nil {
		return s.internal(ctx, "verify password", err)
	}
	if !ok {
		return common.ErrorUnauthorized
	}

	digest, err := s.hasher.Hash(ctx, next)
	if err != nil {
		if errors.Is(err, cryptox.ErrPasswordTooLong) {
			return fmt.Errorf("%w: password too long", common.ErrorValidation)
		}
		return s.internal(ctx, "hash password", err)
	}

	// The update only lands while the verified digest is still current, so
	// a concurrent change makes this one fail instead of overwriting it.
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Accounts(tx).UpdatePasswordHash(ctx, identity, a.PasswordHash, digest)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorUnauthorized
		}
		return s.internal(ctx, "update password", err)
	}

	s.logger.Info(ctx, "password changed", "account_id", a.ID)
	return nil
}

// RevocationEnabled reports whether Logout actually ends a session.
func (s *AccountService) RevocationEnabled() bool { return s.tokens.RevocationEnabled() }

// Logout revokes the session described by claims. Without a revocation
// backend it does nothing and the token stays valid until expiry.
func (s *AccountService) Logout(ctx context.Context, claims *auth.Claims) error {
	if err := s.tokens.Revoke(ctx, claims); err != nil {
		return s.internal(ctx, "revoke token", err)
	}
	return nil
}

// dummy returns a digest of a random password used to make failed lookups
// cost as much as a password check. It is computed on first successful use.
func (s *AccountService) dummy(ctx context.Context) string {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()

	if s.dummyDigest == "" {
		pw, err := common.MakeRandHexString(16)
		if err != nil {
			return ""
		}
		if d, err := s.hasher.Hash(ctx, pw); err == nil {
			s.dummyDigest = d
		}
	}
	return s.dummyDigest
}

func (s *AccountService) internal(ctx context.Context, op string, err error) error {
	s.logger.Error(ctx, "account service failure", "op", op, "error", err)
	return fmt.Errorf("%w: %s", common.ErrorInternal, op)
}

func validIdentity(identity string) bool {
	if len(identity) > maxIdentityLen || strings.ContainsAny(identity, " \t\r\n") {
		return false
	}
	local, domain, ok := strings.Cut(identity, "@")
	return ok && local != "" && domain != "" && !strings.Contains(domain, "@")
}

func normalizePlatform(platform string) (string, error) {
	p := strings.ToLower(strings.TrimSpace(platform))
	if p == "" {
		return "", fmt.Errorf("%w: platform and token are required", common.ErrorValidation)
	}
	if !platformRe.MatchString(p) {
		return "", fmt.Errorf("%w: unsupported platform name", common.ErrorValidation)
	}
	return p, nil
}
