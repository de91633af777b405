// AngelaMos | 2026
// repository.go

package payment

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

func (r *Repository) Create(ctx context.Context, order *Order) error {
	query := `
		INSERT INTO payment_orders (
			id, user_id, amount, currency, plan_ref, status,
			created_at, updated_at
		) VALUES (
			:id, :user_id, :amount, :currency, :plan_ref, :status,
			:created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, order); err != nil {
		return fmt.Errorf("insert payment order: %w", err)
	}

	return nil
}

func (r *Repository) GetByID(
	ctx context.Context,
	id string,
) (*Order, error) {
	var order Order
	query := `SELECT * FROM payment_orders WHERE id = $1`

	if err := r.db.GetContext(ctx, &order, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("get payment order %s: %w", id, err)
	}

	return &order, nil
}

func (r *Repository) ListByUser(
	ctx context.Context,
	userID string,
	limit int,
) ([]Order, error) {
	orders := []Order{}
	query := `
		SELECT * FROM payment_orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &orders, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list payment orders for %s: %w", userID, err)
	}

	return orders, nil
}

// UpdateStatus advances an order out of "created" exactly once; a
// second verification attempt finds zero rows and reads as not found.
func (r *Repository) UpdateStatus(
	ctx context.Context,
	id, status string,
) error {
	query := `
		UPDATE payment_orders
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3`

	res, err := r.db.ExecContext(ctx, query, id, status, StatusCreated)
	if err != nil {
		return fmt.Errorf("update payment order %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment order rows affected: %w", err)
	}
	if rows == 0 {
		return core.ErrNotFound
	}

	return nil
}
