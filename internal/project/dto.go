// AngelaMos | 2026
// dto.go

package project

type CreateProjectRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Status      *string `json:"status" validate:"omitempty,oneof=draft active archived"`
}

type FileDownloadResponse struct {
	Name        string `json:"name"`
	DownloadURL string `json:"downloadUrl"`
}
