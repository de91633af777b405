// AngelaMos | 2026
// dto.go

package tools

import "time"

type RunRequest struct {
	ProjectID  string         `json:"projectId" validate:"required,uuid4"`
	Parameters map[string]any `json:"parameters"`
}

type RunResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

type StatusResponse struct {
	JobID       string     `json:"jobId"`
	ToolName    string     `json:"toolName"`
	Status      string     `json:"status"`
	Details     Details    `json:"details"`
	Cost        *float64   `json:"cost,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type DownloadResponse struct {
	JobID       string `json:"jobId"`
	DownloadURL string `json:"downloadUrl"`
}
