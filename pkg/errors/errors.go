package errors

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrBadRequest         = errors.New("bad request")
	ErrInternalServer     = errors.New("internal server error")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidClaims      = errors.New("invalid session claims")
	ErrInvalidIdentifier  = errors.New("invalid identifier format")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInactiveUser       = errors.New("user is not active")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrLimiterUnavailable = errors.New("rate limit backend unavailable")
)

type APIError struct {
	Message string `json:"error"`
	Code    int    `json:"code"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(message string, code int) *APIError {
	return &APIError{
		Message: message,
		Code:    code,
	}
}

func HTTPStatusFromError(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrInvalidClaims),
		errors.Is(err, ErrInactiveUser):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrInvalidSignature):
		return http.StatusForbidden
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrInvalidIdentifier), errors.Is(err, ErrInvalidRole):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited), errors.Is(err, ErrLimiterUnavailable):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
