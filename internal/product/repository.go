// AngelaMos | 2026
// repository.go

package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/siliconforge/eda-backend/internal/core"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, p *Product) error {
	query := `
		INSERT INTO membership_products (
			id, name, description, price, duration_in_days,
			tool_access, is_active, created_at, updated_at
		) VALUES (
			:id, :name, :description, :price, :duration_in_days,
			:tool_access, :is_active, :created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Product, error) {
	var p Product
	query := `SELECT * FROM membership_products WHERE id = $1`

	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}

	return &p, nil
}

func (r *Repository) List(
	ctx context.Context,
	includeInactive bool,
) ([]Product, error) {
	query := `SELECT * FROM membership_products ORDER BY created_at DESC`
	if !includeInactive {
		query = `
			SELECT * FROM membership_products
			WHERE is_active = TRUE
			ORDER BY created_at DESC`
	}

	products := []Product{}
	if err := r.db.SelectContext(ctx, &products, query); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	return products, nil
}

func (r *Repository) Update(ctx context.Context, p *Product) error {
	query := `
		UPDATE membership_products SET
			name = :name,
			description = :description,
			price = :price,
			duration_in_days = :duration_in_days,
			tool_access = :tool_access,
			is_active = :is_active,
			updated_at = :updated_at
		WHERE id = :id`

	res, err := r.db.NamedExecContext(ctx, query, p)
	if err != nil {
		return fmt.Errorf("update product %s: %w", p.ID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product rows affected: %w", err)
	}
	if rows == 0 {
		return core.ErrNotFound
	}

	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(
		ctx,
		`DELETE FROM membership_products WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product rows affected: %w", err)
	}
	if rows == 0 {
		return core.ErrNotFound
	}

	return nil
}
