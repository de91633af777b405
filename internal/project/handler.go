// AngelaMos | 2026
// handler.go

package project

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
	svc            *Service
	maxUploadBytes int64
}

func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	return &Handler{svc: svc, maxUploadBytes: maxUploadBytes}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/projects", func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/", h.Create)
		r.Get("/", h.List)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Delete("/", h.Delete)

			r.Post("/files", h.UploadFile)
			r.Delete("/files/{name}", h.DeleteFile)
			r.Get("/files/{name}/download", h.DownloadFile)
		})
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	p, err := h.svc.Create(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		respondError(w, err)
		return
	}

	core.Created(w, p)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}

	core.OK(w, projects)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetOwned(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "id"),
	)
	if err != nil {
		respondError(w, err)
		return
	}

	core.OK(w, p)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	p, err := h.svc.Update(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "id"),
		req,
	)
	if err != nil {
		respondError(w, err)
		return
	}

	core.OK(w, p)
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

func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		core.BadRequest(w, "invalid or oversized multipart upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		core.BadRequest(w, "missing file field")
		return
	}
	defer file.Close() //nolint:errcheck // read-only temp file

	meta, err := h.svc.UploadFile(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "id"),
		header.Filename,
		header.Header.Get("Content-Type"),
		header.Size,
		file,
	)
	if err != nil {
		respondError(w, err)
		return
	}

	core.Created(w, meta)
}

func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	err := h.svc.DeleteFile(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "id"),
		chi.URLParam(r, "name"),
	)
	if err != nil {
		respondError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.FileDownloadURL(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "id"),
		chi.URLParam(r, "name"),
	)
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
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "project or file")
	case core.IsAppError(err):
		core.JSONError(w, err)
	default:
		core.InternalServerError(w, err)
	}
}
