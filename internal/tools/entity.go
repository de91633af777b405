// AngelaMos | 2026
// entity.go

package tools

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	StatusInitiated = "initiated"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Details is the structured JSONB blob on a log entry: parameters at
// start, output location and AI status on completion, error text and
// orphaned artifact keys on failure.
type Details map[string]any

// ToolLogEntry is the audit record of one job. Created at Start,
// mutated in place exactly once at completion or failure, never deleted
// by normal operation.
type ToolLogEntry struct {
	ID          string     `db:"id" json:"id"`
	UserID      string     `db:"user_id" json:"userId"`
	ToolName    string     `db:"tool_name" json:"toolName"`
	ProjectID   *string    `db:"project_id" json:"projectId,omitempty"`
	JobID       string     `db:"job_id" json:"jobId"`
	Status      string     `db:"status" json:"status"`
	Details     Details    `db:"details" json:"details"`
	Cost        *float64   `db:"cost" json:"cost,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`
}

func (d Details) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

func (d *Details) Scan(src any) error {
	if src == nil {
		*d = Details{}
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan Details: unsupported type %T", src)
	}

	if len(data) == 0 {
		*d = Details{}
		return nil
	}

	return json.Unmarshal(data, d)
}
