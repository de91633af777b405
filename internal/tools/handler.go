// AngelaMos | 2026
// handler.go

package tools

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
	r.Route("/tools", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/history", h.History)

		r.Route("/{tool}", func(r chi.Router) {
			r.Post("/run", h.Run)
			r.Get("/status/{jobId}", h.Status)
			r.Get("/download/{jobId}", h.Download)
		})
	})
}

func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	resp, err := h.svc.Start(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "tool"),
		req,
	)
	if err != nil {
		respondError(w, err)
		return
	}

	core.Accepted(w, resp)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.Status(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "jobId"),
	)
	if err != nil {
		respondError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.DownloadURL(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "jobId"),
	)
	if err != nil {
		respondError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.svc.History(
		r.Context(), middleware.GetUserID(r.Context()), limit)
	if err != nil {
		respondError(w, err)
		return
	}

	core.OK(w, entries)
}

func respondError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs):
		core.BadRequest(w, core.FormatValidationError(err))
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "job")
	case core.IsAppError(err):
		core.JSONError(w, err)
	default:
		core.InternalServerError(w, err)
	}
}
