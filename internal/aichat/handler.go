// AngelaMos | 2026
// handler.go

package aichat

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
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/ai", func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/chat", h.Chat)
	})
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	resp, err := h.svc.Chat(
		r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		respondError(w, err)
		return
	}

	core.OK(w, resp)
}

func respondError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs):
		core.BadRequest(w, core.FormatValidationError(err))
	case errors.Is(err, core.ErrUsageExhausted):
		core.PaymentRequired(w, "AI chat uses exhausted; upgrade your plan")
	case errors.Is(err, core.ErrUpstream):
		core.JSONError(w, core.UpstreamError("AI provider is unavailable"))
	case core.IsAppError(err):
		core.JSONError(w, err)
	default:
		core.InternalServerError(w, err)
	}
}
