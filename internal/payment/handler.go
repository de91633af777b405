// AngelaMos | 2026
// handler.go

package payment

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
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/payments", func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/orders", h.CreateOrder)
		r.Post("/verify", h.Verify)
		r.Get("/history", h.History)
	})
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	resp, err := h.svc.CreateOrder(
		r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		respondError(w, err)
		return
	}

	core.Created(w, resp)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	resp, err := h.svc.Verify(
		r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		respondError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	orders, err := h.svc.History(
		r.Context(), middleware.GetUserID(r.Context()), limit)
	if err != nil {
		respondError(w, err)
		return
	}

	core.OK(w, orders)
}

func respondError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs):
		core.BadRequest(w, core.FormatValidationError(err))
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "order")
	case core.IsAppError(err):
		core.JSONError(w, err)
	default:
		core.InternalServerError(w, err)
	}
}
