// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/siliconforge/eda-backend/internal/core"
	"github.com/siliconforge/eda-backend/internal/middleware"
)

type Handler struct {
	svc *Service
	jwt *JWTManager
}

func NewHandler(svc *Service, jwtManager *JWTManager) *Handler {
	return &Handler{svc: svc, jwt: jwtManager}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Get("/.well-known/jwks.json", h.jwt.GetJWKSHandler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Post("/change-password", h.ChangePassword)
		})
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	resp, err := h.svc.Register(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}

	core.Created(w, resp)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	resp, err := h.svc.Login(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	err := h.svc.ChangePassword(
		r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		respondError(w, err)
		return
	}

	core.NoContent(w)
}

func respondError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs):
		core.BadRequest(w, core.FormatValidationError(err))
	case errors.Is(err, core.ErrNotFound):
		core.Unauthorized(w, "invalid email or password")
	case core.IsAppError(err):
		core.JSONError(w, err)
	default:
		core.InternalServerError(w, err)
	}
}
