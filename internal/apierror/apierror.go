// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"errors"
	"net/http"

	"vendapos/internal/apperror"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Erro de validação", Fields: fields}
}

// FromError maps a core error onto a status code and a safe response body.
// Dependency failures never expose the wrapped cause.
func FromError(err error) (int, interface{}) {
	var e *apperror.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError, New("Erro interno do servidor")
	}
	switch e.Kind {
	case apperror.KindValidation:
		if len(e.Fields) > 0 {
			return http.StatusUnprocessableEntity, &ValidationError{Detail: e.Message, Fields: e.Fields}
		}
		return http.StatusUnprocessableEntity, &APIError{Detail: e.Message, Code: e.Code}
	case apperror.KindStateConflict:
		return http.StatusConflict, &APIError{Detail: e.Message, Code: e.Code}
	case apperror.KindNotFound:
		return http.StatusNotFound, &APIError{Detail: e.Message}
	case apperror.KindDependencyUnavailable:
		return http.StatusServiceUnavailable, &APIError{Detail: "Serviço temporariamente indisponível", Code: "dependency_unavailable"}
	default:
		return http.StatusInternalServerError, New("Erro interno do servidor")
	}
}
