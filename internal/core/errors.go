// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
	ErrTokenInvalid = errors.New("token invalid")

	ErrEntitlementDenied = errors.New("entitlement denied")
	ErrMembershipExpired = errors.New("membership expired")
	ErrUsageExhausted    = errors.New("usage limit exhausted")
	ErrUpstream          = errors.New("upstream provider error")
)

type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.cause
}

func NewAppError(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

func (e *AppError) WithCause(err error) *AppError {
	clone := *e
	clone.cause = err
	return &clone
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func UnauthorizedError(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func ForbiddenError(message string) *AppError {
	return NewAppError(http.StatusForbidden, "FORBIDDEN", message)
}

func NotFoundError(resource string) *AppError {
	return NewAppError(
		http.StatusNotFound,
		"NOT_FOUND",
		resource+" not found",
	)
}

func ValidationError(message string) *AppError {
	return NewAppError(http.StatusBadRequest, "VALIDATION_ERROR", message)
}

func PaymentRequiredError(message string) *AppError {
	return NewAppError(http.StatusPaymentRequired, "PAYMENT_REQUIRED", message)
}

func EntitlementError(message string) *AppError {
	return NewAppError(http.StatusForbidden, "ENTITLEMENT_DENIED", message)
}

func UpstreamError(message string) *AppError {
	return NewAppError(http.StatusBadGateway, "UPSTREAM_FAILURE", message)
}

func TokenExpiredError() *AppError {
	return NewAppError(
		http.StatusUnauthorized,
		"TOKEN_EXPIRED",
		"access token has expired",
	)
}

func TokenRevokedError() *AppError {
	return NewAppError(
		http.StatusUnauthorized,
		"TOKEN_REVOKED",
		"access token has been revoked",
	)
}

func TokenInvalidError() *AppError {
	return NewAppError(
		http.StatusUnauthorized,
		"TOKEN_INVALID",
		"access token is invalid",
	)
}

func FormatValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return "invalid request"
	}

	messages := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		messages = append(messages, formatFieldError(fieldErr))
	}

	return strings.Join(messages, "; ")
}

func formatFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	default:
		return field + " is invalid"
	}
}
