// AngelaMos | 2026
// repository.go

package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/siliconforge/eda-backend/internal/core"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, entry *ToolLogEntry) error {
	query := `
		INSERT INTO tool_logs (
			id, user_id, tool_name, project_id, job_id,
			status, details, cost, created_at, completed_at
		) VALUES (
			:id, :user_id, :tool_name, :project_id, :job_id,
			:status, :details, :cost, :created_at, :completed_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("insert tool log: %w", err)
	}

	return nil
}

func (r *Repository) GetByJobID(
	ctx context.Context,
	jobID string,
) (*ToolLogEntry, error) {
	var entry ToolLogEntry
	query := `SELECT * FROM tool_logs WHERE job_id = $1`

	if err := r.db.GetContext(ctx, &entry, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("get tool log %s: %w", jobID, err)
	}

	return &entry, nil
}

func (r *Repository) ListByUser(
	ctx context.Context,
	userID string,
	limit int,
) ([]ToolLogEntry, error) {
	entries := []ToolLogEntry{}
	query := `
		SELECT * FROM tool_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &entries, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list tool logs for %s: %w", userID, err)
	}

	return entries, nil
}

// MarkCompleted merges the outcome details into the existing blob, so
// the parameters recorded at start survive completion.
func (r *Repository) MarkCompleted(
	ctx context.Context,
	jobID string,
	details Details,
	cost float64,
	completedAt time.Time,
) error {
	return r.finish(ctx, jobID, StatusCompleted, details, &cost, completedAt)
}

func (r *Repository) MarkFailed(
	ctx context.Context,
	jobID string,
	details Details,
	completedAt time.Time,
) error {
	return r.finish(ctx, jobID, StatusFailed, details, nil, completedAt)
}

func (r *Repository) finish(
	ctx context.Context,
	jobID, status string,
	details Details,
	cost *float64,
	completedAt time.Time,
) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal log details: %w", err)
	}

	query := `
		UPDATE tool_logs SET
			status = $2,
			details = details || $3::jsonb,
			cost = COALESCE($4, cost),
			completed_at = $5
		WHERE job_id = $1 AND status = $6`

	res, err := r.db.ExecContext(
		ctx, query, jobID, status, payload, cost, completedAt, StatusInitiated)
	if err != nil {
		return fmt.Errorf("finish tool log %s: %w", jobID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish tool log rows affected: %w", err)
	}
	if rows == 0 {
		return core.ErrNotFound
	}

	return nil
}
