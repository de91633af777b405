// AngelaMos | 2026
// entity.go

package product

import (
	"time"

	"github.com/siliconforge/eda-backend/internal/plan"
)

// Product is an admin-defined membership bundle. When a user's
// customProductId points at one, its tool access overrides the base tier.
type Product struct {
	ID             string          `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	Description    string          `db:"description" json:"description"`
	Price          int64           `db:"price" json:"price"`
	DurationInDays int             `db:"duration_in_days" json:"durationInDays"`
	ToolAccess     plan.ToolAccess `db:"tool_access" json:"toolAccess"`
	IsActive       bool            `db:"is_active" json:"isActive"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`
}

// Grant reports the product's grant for a tool. A missing entry is a
// denial, never a fallthrough to the base tier.
func (p *Product) Grant(tool string) (plan.ToolGrant, bool) {
	grant, ok := p.ToolAccess[tool]
	return grant, ok
}
