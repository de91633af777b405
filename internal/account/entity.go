// AngelaMos | 2026
// entity.go

package account

import (
	"time"

	"github.com/siliconforge/eda-backend/internal/entitlement"
	"github.com/siliconforge/eda-backend/internal/plan"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the principal record. The membership fields (tier, custom
// product id, expiry, cached tool access, usage counters) are owned by
// the account service; handlers never edit activeToolAccess directly —
// it is derived state, rewritten whenever tier or product changes.
type User struct {
	ID                  string          `db:"id" json:"id"`
	Email               string          `db:"email" json:"email"`
	PasswordHash        string          `db:"password_hash" json:"-"`
	Name                string          `db:"name" json:"name"`
	Role                string          `db:"role" json:"role"`
	Tier                string          `db:"tier" json:"tier"`
	CustomProductID     *string         `db:"custom_product_id" json:"customProductId,omitempty"`
	MembershipExpiresAt *time.Time      `db:"membership_expires_at" json:"membershipExpiresAt,omitempty"`
	ActiveToolAccess    plan.ToolAccess `db:"active_tool_access" json:"activeToolAccess"`
	AIUsesRemaining     int             `db:"ai_uses_remaining" json:"aiUsesRemaining"`
	CreatedAt           time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updatedAt"`
	DeletedAt           *time.Time      `db:"deleted_at" json:"-"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Subject projects the membership fields the resolver consults.
func (u *User) Subject() entitlement.Subject {
	productID := ""
	if u.CustomProductID != nil {
		productID = *u.CustomProductID
	}

	return entitlement.Subject{
		ID:                  u.ID,
		Tier:                u.Tier,
		CustomProductID:     productID,
		MembershipExpiresAt: u.MembershipExpiresAt,
		ActiveToolAccess:    u.ActiveToolAccess,
	}
}
