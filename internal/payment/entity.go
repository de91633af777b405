// AngelaMos | 2026
// entity.go

package payment

import "time"

const (
	StatusCreated = "created"
	StatusPaid    = "paid"
	StatusFailed  = "failed"
)

// Order mirrors a gateway order from creation through verification.
// PlanRef records what was being bought: "tier:basic" or
// "product:<id>", resolved once at order creation.
type Order struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	Amount    int64     `db:"amount" json:"amount"`
	Currency  string    `db:"currency" json:"currency"`
	PlanRef   string    `db:"plan_ref" json:"planRef"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
