// AngelaMos | 2026
// handler.go

package product

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/siliconforge/eda-backend/internal/core"
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
	r.Route("/admin/membership-products", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	p, err := h.svc.Create(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}

	core.Created(w, p)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"

	products, err := h.svc.List(r.Context(), includeInactive)
	if err != nil {
		respondError(w, err)
		return
	}

	core.OK(w, products)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}

	core.OK(w, p)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	p, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, err)
		return
	}

	core.OK(w, p)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
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
		core.NotFound(w, "product")
	case core.IsAppError(err):
		core.JSONError(w, err)
	default:
		core.InternalServerError(w, err)
	}
}
