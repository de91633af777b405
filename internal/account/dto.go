// AngelaMos | 2026
// dto.go

package account

type UpdateProfileRequest struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
}

// MembershipChangeRequest carries the admin membership mutation. A nil
// field keeps the existing value; an explicit empty customProductId
// clears the product assignment.
type MembershipChangeRequest struct {
	Tier            *string `json:"tier" validate:"omitempty,oneof=free basic premium"`
	CustomProductID *string `json:"customProductId"`
}
