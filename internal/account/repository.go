// AngelaMos | 2026
// repository.go

package account

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/siliconforge/eda-backend/internal/core"
	"github.com/siliconforge/eda-backend/internal/plan"
)

const pgUniqueViolation = "23505"

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (
			id, email, password_hash, name, role, tier,
			custom_product_id, membership_expires_at, active_tool_access,
			ai_uses_remaining, created_at, updated_at
		) VALUES (
			:id, :email, :password_hash, :name, :role, :tier,
			:custom_product_id, :membership_expires_at, :active_tool_access,
			:ai_uses_remaining, :created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, u); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return core.ErrDuplicateKey
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*User, error) {
	var u User
	query := `SELECT * FROM users WHERE id = $1 AND deleted_at IS NULL`

	if err := r.db.GetContext(ctx, &u, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}

	return &u, nil
}

func (r *Repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	var u User
	query := `SELECT * FROM users WHERE email = $1 AND deleted_at IS NULL`

	if err := r.db.GetContext(ctx, &u, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return &u, nil
}

func (r *Repository) List(
	ctx context.Context,
	limit, offset int,
) ([]User, int, error) {
	users := []User{}
	query := `
		SELECT * FROM users
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	if err := r.db.SelectContext(ctx, &users, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`
	if err := r.db.GetContext(ctx, &total, countQuery); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	return users, total, nil
}

func (r *Repository) UpdateProfile(
	ctx context.Context,
	id, name string,
) error {
	query := `
		UPDATE users SET name = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execExpectingRow(ctx, query, id, name)
}

func (r *Repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE users SET password_hash = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execExpectingRow(ctx, query, id, passwordHash)
}

// UpdateMembership rewrites the whole membership document in one
// statement: tier, product reference, expiry, the derived tool-access
// cache, and the AI counter. Last write wins on concurrent changes.
func (r *Repository) UpdateMembership(
	ctx context.Context,
	id string,
	tier string,
	customProductID *string,
	expiresAt *time.Time,
	access plan.ToolAccess,
	aiUses int,
) error {
	query := `
		UPDATE users SET
			tier = $2,
			custom_product_id = $3,
			membership_expires_at = $4,
			active_tool_access = $5,
			ai_uses_remaining = $6,
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	res, err := r.db.ExecContext(
		ctx, query, id, tier, customProductID, expiresAt, access, aiUses)
	if err != nil {
		return fmt.Errorf("update membership for %s: %w", id, err)
	}

	return expectRow(res)
}

// SeedToolGrant writes a cache entry for a tool only when none exists,
// so a grant resolved from the base plan or product can be spent by the
// cached decrement. The `?` guard makes the write a no-op when an entry
// is already present, including one seeded by a concurrent request.
func (r *Repository) SeedToolGrant(
	ctx context.Context,
	id, tool string,
	grant plan.ToolGrant,
) error {
	payload, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("marshal tool grant: %w", err)
	}

	query := `
		UPDATE users SET
			active_tool_access = jsonb_set(
				active_tool_access, ARRAY[$2], $3::jsonb, true),
			updated_at = NOW()
		WHERE id = $1
		  AND deleted_at IS NULL
		  AND NOT (active_tool_access ? $2)`

	if _, err := r.db.ExecContext(ctx, query, id, tool, payload); err != nil {
		return fmt.Errorf("seed tool grant: %w", err)
	}

	return nil
}

// ConsumeToolUse atomically decrements the cached remaining count for a
// tool. The guard keeps the counter from going negative; a zero or
// missing counter consumes nothing and returns false.
func (r *Repository) ConsumeToolUse(
	ctx context.Context,
	id, tool string,
) (bool, error) {
	query := `
		UPDATE users SET
			active_tool_access = jsonb_set(
				active_tool_access,
				ARRAY[$2, 'limit'],
				to_jsonb(((active_tool_access #>> ARRAY[$2, 'limit'])::int) - 1)
			),
			updated_at = NOW()
		WHERE id = $1
		  AND deleted_at IS NULL
		  AND ((active_tool_access #>> ARRAY[$2, 'limit'])::int) > 0`

	res, err := r.db.ExecContext(ctx, query, id, tool)
	if err != nil {
		return false, fmt.Errorf("consume tool use: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consume tool use rows affected: %w", err)
	}

	return rows == 1, nil
}

// ConsumeAIUse atomically decrements the AI chat counter with the same
// non-negative guard. A value of -1 means unlimited and is never
// decremented by callers.
func (r *Repository) ConsumeAIUse(
	ctx context.Context,
	id string,
) (bool, error) {
	query := `
		UPDATE users SET
			ai_uses_remaining = ai_uses_remaining - 1,
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL AND ai_uses_remaining > 0`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("consume ai use: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consume ai use rows affected: %w", err)
	}

	return rows == 1, nil
}

// Delete removes the account row permanently. Projects cascade at the
// schema level; blob cleanup is the caller's concern.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}

	return expectRow(res)
}

func (r *Repository) execExpectingRow(
	ctx context.Context,
	query string,
	args ...any,
) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}

	return expectRow(res)
}

func expectRow(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return core.ErrNotFound
	}
	return nil
}
