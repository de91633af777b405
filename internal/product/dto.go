// AngelaMos | 2026
// dto.go

package product

import (
	"github.com/siliconforge/eda-backend/internal/plan"
)

type CreateProductRequest struct {
	Name           string          `json:"name" validate:"required,min=2,max=120"`
	Description    string          `json:"description" validate:"max=1000"`
	Price          int64           `json:"price" validate:"gte=0"`
	DurationInDays int             `json:"durationInDays" validate:"required,gte=-1,ne=0"`
	ToolAccess     plan.ToolAccess `json:"toolAccess" validate:"required"`
	IsActive       *bool           `json:"isActive"`
}

type UpdateProductRequest struct {
	Name           *string          `json:"name" validate:"omitempty,min=2,max=120"`
	Description    *string          `json:"description" validate:"omitempty,max=1000"`
	Price          *int64           `json:"price" validate:"omitempty,gte=0"`
	DurationInDays *int             `json:"durationInDays" validate:"omitempty,gte=-1,ne=0"`
	ToolAccess     *plan.ToolAccess `json:"toolAccess"`
	IsActive       *bool            `json:"isActive"`
}
