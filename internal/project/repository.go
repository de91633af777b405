// AngelaMos | 2026
// repository.go

package project

import (
	"context"
	"database/sql"
	"encoding/json"
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

func (r *Repository) Create(ctx context.Context, p *Project) error {
	query := `
		INSERT INTO projects (
			id, user_id, name, description, status,
			files, tool_outputs, created_at, updated_at
		) VALUES (
			:id, :user_id, :name, :description, :status,
			:files, :tool_outputs, :created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("insert project: %w", err)
	}

	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Project, error) {
	var p Project
	query := `SELECT * FROM projects WHERE id = $1`

	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}

	return &p, nil
}

func (r *Repository) ListByUser(
	ctx context.Context,
	userID string,
) ([]Project, error) {
	projects := []Project{}
	query := `
		SELECT * FROM projects
		WHERE user_id = $1
		ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &projects, query, userID); err != nil {
		return nil, fmt.Errorf("list projects for %s: %w", userID, err)
	}

	return projects, nil
}

func (r *Repository) Update(ctx context.Context, p *Project) error {
	query := `
		UPDATE projects SET
			name = :name,
			description = :description,
			status = :status,
			updated_at = :updated_at
		WHERE id = :id`

	res, err := r.db.NamedExecContext(ctx, query, p)
	if err != nil {
		return fmt.Errorf("update project %s: %w", p.ID, err)
	}

	return expectRow(res)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(
		ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}

	return expectRow(res)
}

// AppendFile adds one entry to the files array with a JSONB
// concatenation, so two concurrent appends cannot lose each other the
// way read-modify-write would.
func (r *Repository) AppendFile(
	ctx context.Context,
	projectID string,
	file FileMetadata,
) error {
	payload, err := json.Marshal([]FileMetadata{file})
	if err != nil {
		return fmt.Errorf("marshal file metadata: %w", err)
	}

	query := `
		UPDATE projects SET
			files = files || $2::jsonb,
			updated_at = NOW()
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, projectID, payload)
	if err != nil {
		return fmt.Errorf("append file to project %s: %w", projectID, err)
	}

	return expectRow(res)
}

// RemoveFile drops every files entry whose path matches. Deletions are
// rare enough that the array rebuild is acceptable.
func (r *Repository) RemoveFile(
	ctx context.Context,
	projectID, path string,
) error {
	query := `
		UPDATE projects SET
			files = COALESCE(
				(SELECT jsonb_agg(f) FROM jsonb_array_elements(files) f
				 WHERE f->>'path' <> $2),
				'[]'::jsonb
			),
			updated_at = NOW()
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, projectID, path)
	if err != nil {
		return fmt.Errorf("remove file from project %s: %w", projectID, err)
	}

	return expectRow(res)
}

// RecordToolOutput appends the artifact to the files array and writes
// the (toolName, jobID) ledger entry in one statement, so a completed
// job commits its project side effects atomically.
func (r *Repository) RecordToolOutput(
	ctx context.Context,
	projectID, toolName, jobID string,
	file FileMetadata,
	output ToolOutput,
) error {
	filePayload, err := json.Marshal([]FileMetadata{file})
	if err != nil {
		return fmt.Errorf("marshal file metadata: %w", err)
	}

	outputPayload, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("marshal tool output: %w", err)
	}

	query := `
		UPDATE projects SET
			files = files || $2::jsonb,
			tool_outputs = jsonb_set(
				jsonb_set(
					tool_outputs,
					ARRAY[$3],
					COALESCE(tool_outputs -> $3, '{}'::jsonb),
					true
				),
				ARRAY[$3, $4],
				$5::jsonb,
				true
			),
			updated_at = NOW()
		WHERE id = $1`

	res, err := r.db.ExecContext(
		ctx, query, projectID, filePayload, toolName, jobID, outputPayload)
	if err != nil {
		return fmt.Errorf(
			"record tool output on project %s: %w", projectID, err)
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
