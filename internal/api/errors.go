package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jpratt/chatterd/internal/apperr"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func NewBadRequestError(message string) *ApiError {
	if message == "" {
		message = lower(http.StatusText(http.StatusBadRequest))
	}

	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Message:    message,
	}
}

func NewNotFoundError(message string) *ApiError {
	if message == "" {
		message = lower(http.StatusText(http.StatusNotFound))
	}

	return &ApiError{
		StatusCode: http.StatusNotFound,
		Message:    message,
	}
}

func NewInternalServerError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusInternalServerError,
		Message:    lower(http.StatusText(http.StatusInternalServerError)),
		Err:        err,
	}
}

func NewUnauthorizedError(message string) *ApiError {
	if message == "" {
		message = lower(http.StatusText(http.StatusUnauthorized))
	}

	return &ApiError{
		StatusCode: http.StatusUnauthorized,
		Message:    message,
	}
}

func NewForbiddenError(message string) *ApiError {
	if message == "" {
		message = lower(http.StatusText(http.StatusForbidden))
	}

	return &ApiError{
		StatusCode: http.StatusForbidden,
		Message:    message,
	}
}

func NewServiceUnavailableError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusServiceUnavailable,
		Message:    lower(http.StatusText(http.StatusServiceUnavailable)),
	}
}

// fromError maps a store or auth error to its HTTP representation. Storage
// detail stays server-side.
func fromError(err error) *ApiError {
	var e *apperr.Error
	if !errors.As(err, &e) {
		return NewInternalServerError(err)
	}

	switch e.Kind {
	case apperr.KindValidation:
		return NewBadRequestError(e.Message)
	case apperr.KindAuthentication:
		return NewUnauthorizedError(e.Message)
	case apperr.KindAuthorization:
		return NewForbiddenError(e.Message)
	case apperr.KindNotFound:
		return NewNotFoundError(e.Message)
	default:
		return NewInternalServerError(err)
	}
}
