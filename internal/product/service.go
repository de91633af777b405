// AngelaMos | 2026
// service.go

package product

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/siliconforge/eda-backend/internal/core"
	"github.com/siliconforge/eda-backend/internal/plan"
)

type Service struct {
	repo     *Repository
	validate *validator.Validate
}

func NewService(repo *Repository) *Service {
	return &Service{
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Service) Create(
	ctx context.Context,
	req CreateProductRequest,
) (*Product, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	if err := validateToolAccess(req.ToolAccess); err != nil {
		return nil, err
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	now := time.Now().UTC()
	p := &Product{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Description:    req.Description,
		Price:          req.Price,
		DurationInDays: req.DurationInDays,
		ToolAccess:     req.ToolAccess,
		IsActive:       isActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(
	ctx context.Context,
	includeInactive bool,
) ([]Product, error) {
	return s.repo.List(ctx, includeInactive)
}

func (s *Service) Update(
	ctx context.Context,
	id string,
	req UpdateProductRequest,
) (*Product, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.DurationInDays != nil {
		p.DurationInDays = *req.DurationInDays
	}
	if req.ToolAccess != nil {
		if err := validateToolAccess(*req.ToolAccess); err != nil {
			return nil, err
		}
		p.ToolAccess = *req.ToolAccess
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}

	p.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func validateToolAccess(ta plan.ToolAccess) error {
	for tool, grant := range ta {
		if !plan.IsTool(tool) {
			return core.ValidationError(fmt.Sprintf("unknown tool %q", tool))
		}
		if grant.Limit < plan.LimitUnlimited {
			return core.ValidationError(fmt.Sprintf(
				"tool %q: limit must be -1, 0, or a positive count", tool))
		}
	}
	return nil
}
