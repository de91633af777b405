// AngelaMos | 2026
// handler.go

package account

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/siliconforge/eda-backend/internal/core"
	"github.com/siliconforge/eda-backend/internal/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/users/me", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.GetMe)
		r.Put("/", h.UpdateMe)
		r.Delete("/", h.DeleteMe)
	})

	r.Route("/admin/users", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Put("/{id}/membership", h.ChangeMembership)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}

	core.OK(w, u)
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	u, err := h.svc.UpdateProfile(
		r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		respondError(w, err)
		return
	}

	core.OK(w, u)
}

func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	err := h.svc.DeleteSelf(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	users, total, err := h.svc.List(r.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		respondError(w, err)
		return
	}

	core.Paginated(w, users, page, pageSize, total)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}

	core.OK(w, u)
}

func (h *Handler) ChangeMembership(w http.ResponseWriter, r *http.Request) {
	var req MembershipChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	u, err := h.svc.ApplyMembershipChange(
		r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, err)
		return
	}

	core.OK(w, u)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Delete(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "id"),
	)
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
		core.NotFound(w, "user")
	case core.IsAppError(err):
		core.JSONError(w, err)
	default:
		core.InternalServerError(w, err)
	}
}
