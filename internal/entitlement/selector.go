// AngelaMos | 2026
// selector.go

package entitlement

import (
	"github.com/siliconforge/eda-backend/internal/core"
	"github.com/siliconforge/eda-backend/internal/plan"
)

// Selector is a tagged membership reference, resolved once at the API
// boundary: either a base tier name or a custom product id. It replaces
// any "try it as a product id, fall back to a plan name" guessing.
type Selector struct {
	kind  selectorKind
	value string
}

type selectorKind int

const (
	selectorTier selectorKind = iota + 1
	selectorProduct
)

// TierSelector references a compiled-in base plan.
func TierSelector(name string) (Selector, error) {
	if !plan.IsTier(name) {
		return Selector{}, core.ValidationError("unknown tier: " + name)
	}
	return Selector{kind: selectorTier, value: name}, nil
}

// ProductSelector references a custom membership product by id.
func ProductSelector(id string) (Selector, error) {
	if id == "" {
		return Selector{}, core.ValidationError("product id must not be empty")
	}
	return Selector{kind: selectorProduct, value: id}, nil
}

func (s Selector) IsZero() bool {
	return s.kind == 0
}

func (s Selector) IsTier() bool {
	return s.kind == selectorTier
}

func (s Selector) IsProduct() bool {
	return s.kind == selectorProduct
}

// Tier returns the tier name; empty unless IsTier.
func (s Selector) Tier() string {
	if s.kind != selectorTier {
		return ""
	}
	return s.value
}

// ProductID returns the product id; empty unless IsProduct.
func (s Selector) ProductID() string {
	if s.kind != selectorProduct {
		return ""
	}
	return s.value
}
