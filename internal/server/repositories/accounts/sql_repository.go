package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/common"
	"github.com/dmitrijs2005/linkkeeper/internal/dbx"
	"github.com/dmitrijs2005/linkkeeper/internal/server/models"
)

// SQLRepository implements Repository for Postgres and SQLite. Queries are
// written with $N placeholders and rebound per dialect.
type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
	now     func() time.Time
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect, now: time.Now}
}

func (r *SQLRepository) q(query string) string {
	return r.dialect.Rebind(query)
}

func (r *SQLRepository) stamp() int64 {
	return r.now().UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func (r *SQLRepository) Create(ctx context.Context, identity, passwordHash string) (*models.Account, error) {
	query :=
		`INSERT INTO accounts (identity, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $3)
		 RETURNING id`

	now := r.stamp()
	a := &models.Account{
		Identity:     identity,
		PasswordHash: passwordHash,
		CreatedAt:    fromMillis(now),
		UpdatedAt:    fromMillis(now),
	}

	err := r.db.QueryRowContext(ctx, r.q(query), identity, passwordHash, now).Scan(&a.ID)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return a, nil
}

func (r *SQLRepository) GetByIdentity(ctx context.Context, identity string) (*models.Account, error) {
	query :=
		`SELECT id, identity, password_hash, created_at, updated_at FROM accounts
		 WHERE identity = $1`

	var created, updated int64
	a := &models.Account{}
	err := r.db.QueryRowContext(ctx, r.q(query), identity).
		Scan(&a.ID, &a.Identity, &a.PasswordHash, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	a.CreatedAt = fromMillis(created)
	a.UpdatedAt = fromMillis(updated)
	return a, nil
}

func (r *SQLRepository) UpdatePasswordHash(ctx context.Context, identity, previousHash, passwordHash string) error {
	query :=
		`UPDATE accounts SET password_hash = $2, updated_at = $3
		 WHERE identity = $1 AND password_hash = $4`

	res, err := r.db.ExecContext(ctx, r.q(query), identity, passwordHash, r.stamp(), previousHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(res)
}

func (r *SQLRepository) SetLinkedToken(ctx context.Context, identity, platform, token string) error {
	// The WHERE clause also keeps SQLite from misparsing ON CONFLICT as a
	// join constraint.
	query :=
		`INSERT INTO linked_tokens (account_id, platform, token, updated_at)
		 SELECT id, CAST($2 AS TEXT), CAST($3 AS TEXT), CAST($4 AS BIGINT) FROM accounts
		 WHERE identity = $1
		 ON CONFLICT (account_id, platform)
		 DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`

	res, err := r.db.ExecContext(ctx, r.q(query), identity, platform, token, r.stamp())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(res)
}

func (r *SQLRepository) GetLinkedToken(ctx context.Context, identity, platform string) (string, error) {
	query :=
		`SELECT t.token FROM linked_tokens t
		 JOIN accounts a ON a.id = t.account_id
		 WHERE a.identity = $1 AND t.platform = $2`

	var token string
	err := r.db.QueryRowContext(ctx, r.q(query), identity, platform).Scan(&token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

func (r *SQLRepository) DeleteLinkedToken(ctx context.Context, identity, platform string) error {
	query :=
		`DELETE FROM linked_tokens
		 WHERE platform = $2
		 AND account_id = (SELECT id FROM accounts WHERE identity = $1)`

	res, err := r.db.ExecContext(ctx, r.q(query), identity, platform)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	// nothing deleted: either nothing was linked or there is no such account
	return r.exists(ctx, identity)
}

func (r *SQLRepository) exists(ctx context.Context, identity string) error {
	query := `SELECT id FROM accounts WHERE identity = $1`

	var id int64
	if err := r.db.QueryRowContext(ctx, r.q(query), identity).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) ListLinkedTokens(ctx context.Context, identity string) (map[string]string, error) {
	query :=
		`SELECT t.platform, t.token FROM accounts a
		 LEFT JOIN linked_tokens t ON t.account_id = a.id
		 WHERE a.identity = $1
		 ORDER BY t.platform`

	rows, err := r.db.QueryContext(ctx, r.q(query), identity)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	found := false
	tokens := make(map[string]string)
	for rows.Next() {
		found = true
		var platform, token sql.NullString
		if err := rows.Scan(&platform, &token); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if platform.Valid {
			tokens[platform.String] = token.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if !found {
		return nil, common.ErrorNotFound
	}

	return tokens, nil
}

func (r *SQLRepository) ListLinkedStatus(ctx context.Context, identity string, platforms []string) (map[string]bool, error) {
	query :=
		`SELECT t.platform FROM accounts a
		 LEFT JOIN linked_tokens t ON t.account_id = a.id
		 WHERE a.identity = $1`

	rows, err := r.db.QueryContext(ctx, r.q(query), identity)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	found := false
	linked := make(map[string]struct{})
	for rows.Next() {
		found = true
		var platform sql.NullString
		if err := rows.Scan(&platform); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if platform.Valid {
			linked[platform.String] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if !found {
		return nil, common.ErrorNotFound
	}

	status := make(map[string]bool, len(platforms))
	for _, p := range platforms {
		_, ok := linked[p]
		status[p] = ok
	}
	return status, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
