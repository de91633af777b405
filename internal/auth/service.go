// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/siliconforge/eda-backend/internal/account"
	"github.com/siliconforge/eda-backend/internal/config"
	"github.com/siliconforge/eda-backend/internal/core"
	"github.com/siliconforge/eda-backend/internal/plan"
)

type UserStore interface {
	Create(ctx context.Context, u *account.User) error
	GetByID(ctx context.Context, id string) (*account.User, error)
	GetByEmail(ctx context.Context, email string) (*account.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type Service struct {
	store    UserStore
	jwt      *JWTManager
	validate *validator.Validate
	cfg      config.JWTConfig
}

func NewService(
	store UserStore,
	jwtManager *JWTManager,
	cfg config.JWTConfig,
) *Service {
	return &Service{
		store:    store,
		jwt:      jwtManager,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cfg:      cfg,
	}
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
) (*AuthResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	hash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	freePlan, _ := plan.ByTier(plan.TierFree)
	snapshot := make(plan.ToolAccess, len(freePlan.ToolAccess))
	for tool, grant := range freePlan.ToolAccess {
		snapshot[tool] = grant
	}

	now := time.Now().UTC()
	u := &account.User{
		ID:               uuid.NewString(),
		Email:            strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash:     hash,
		Name:             req.Name,
		Role:             account.RoleUser,
		Tier:             plan.TierFree,
		ActiveToolAccess: snapshot,
		AIUsesRemaining:  freePlan.AIUses,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.store.Create(ctx, u); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, core.NewAppError(
				http.StatusConflict,
				"EMAIL_TAKEN",
				"an account with this email already exists",
			)
		}
		return nil, err
	}

	slog.Info("user registered", "user_id", u.ID)

	return s.issueToken(u)
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
) (*AuthResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	u, err := s.store.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	var storedHash *string
	if u != nil {
		storedHash = &u.PasswordHash
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(
		req.Password, storedHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !valid || u == nil {
		return nil, core.UnauthorizedError("invalid email or password")
	}

	if newHash != "" {
		if upErr := s.store.UpdatePassword(ctx, u.ID, newHash); upErr != nil {
			slog.Warn("password rehash persist failed",
				"user_id", u.ID, "error", upErr)
		}
	}

	slog.Info("user logged in", "user_id", u.ID)

	return s.issueToken(u)
}

func (s *Service) ChangePassword(
	ctx context.Context,
	userID string,
	req ChangePasswordRequest,
) error {
	if err := s.validate.Struct(req); err != nil {
		return err
	}

	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	valid, err := core.VerifyPassword(req.CurrentPassword, u.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return core.UnauthorizedError("current password is incorrect")
	}

	hash, err := core.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.store.UpdatePassword(ctx, userID, hash)
}

func (s *Service) issueToken(u *account.User) (*AuthResponse, error) {
	token, err := s.jwt.CreateAccessToken(AccessTokenClaims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		Tier:   u.Tier,
	})
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	return &AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.cfg.AccessTokenExpire.Seconds()),
		User:        u,
	}, nil
}
