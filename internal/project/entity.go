// AngelaMos | 2026
// entity.go

package project

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	StatusDraft    = "draft"
	StatusActive   = "active"
	StatusArchived = "archived"
)

// FileMetadata describes one stored blob attached to a project, either
// uploaded by the owner or produced by a tool run.
type FileMetadata struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	URL        string    `json:"url,omitempty"`
	Type       string    `json:"type"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// FileList is the ordered JSONB files column. Appends go through the
// store's atomic array-append, never read-modify-write.
type FileList []FileMetadata

// ToolOutput is one completed job's entry in the per-tool output ledger.
type ToolOutput struct {
	Artifact    string    `json:"artifact"`
	Path        string    `json:"path"`
	AIStatus    string    `json:"aiStatus"`
	CompletedAt time.Time `json:"completedAt"`
}

// ToolOutputs maps toolName -> jobID -> output.
type ToolOutputs map[string]map[string]ToolOutput

type Project struct {
	ID          string      `db:"id" json:"id"`
	UserID      string      `db:"user_id" json:"userId"`
	Name        string      `db:"name" json:"name"`
	Description string      `db:"description" json:"description"`
	Status      string      `db:"status" json:"status"`
	Files       FileList    `db:"files" json:"files"`
	ToolOutputs ToolOutputs `db:"tool_outputs" json:"toolOutputs"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updatedAt"`
}

func (fl FileList) Value() (driver.Value, error) {
	if fl == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(fl)
}

func (fl *FileList) Scan(src any) error {
	data, err := jsonbBytes(src, "FileList")
	if err != nil {
		return err
	}
	if data == nil {
		*fl = FileList{}
		return nil
	}
	return json.Unmarshal(data, fl)
}

func (to ToolOutputs) Value() (driver.Value, error) {
	if to == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(to)
}

func (to *ToolOutputs) Scan(src any) error {
	data, err := jsonbBytes(src, "ToolOutputs")
	if err != nil {
		return err
	}
	if data == nil {
		*to = ToolOutputs{}
		return nil
	}
	return json.Unmarshal(data, to)
}

func jsonbBytes(src any, typeName string) ([]byte, error) {
	if src == nil {
		return nil, nil
	}
	switch v := src.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("scan %s: unsupported type %T", typeName, src)
	}
}
