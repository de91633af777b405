// AngelaMos | 2026
// response.go

package core

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *AppError `json:"error,omitempty"`
	Meta    *PageMeta `json:"meta,omitempty"`
}

type PageMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // best-effort response write
	_ = json.NewEncoder(w).Encode(body)
}

func OK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func Created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Success: true, Data: data})
}

func Accepted(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusAccepted, envelope{Success: true, Data: data})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Paginated(w http.ResponseWriter, data any, page, pageSize, total int) {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    data,
		Meta: &PageMeta{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

func BadRequest(w http.ResponseWriter, message string) {
	JSONError(w, ValidationError(message))
}

func NotFound(w http.ResponseWriter, resource string) {
	JSONError(w, NotFoundError(resource))
}

func Forbidden(w http.ResponseWriter, message string) {
	JSONError(w, ForbiddenError(message))
}

func Unauthorized(w http.ResponseWriter, message string) {
	JSONError(w, UnauthorizedError(message))
}

func PaymentRequired(w http.ResponseWriter, message string) {
	JSONError(w, PaymentRequiredError(message))
}

func InternalServerError(w http.ResponseWriter, err error) {
	slog.Error("internal server error", "error", err)
	JSONError(w, NewAppError(
		http.StatusInternalServerError,
		"INTERNAL",
		"an internal error occurred",
	))
}

func JSONError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = NewAppError(
			http.StatusInternalServerError,
			"INTERNAL",
			"an internal error occurred",
		)
	}

	writeJSON(w, appErr.Status, envelope{Success: false, Error: appErr})
}
