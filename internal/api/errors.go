package api

import (
	"fmt"
	"net/http"
)

// ErrorCode classifies request failures.
type ErrorCode string

const (
	ErrUnauthorized ErrorCode = "unauthorized"
	ErrForbidden    ErrorCode = "forbidden"
	ErrBadRequest   ErrorCode = "bad_request"
	ErrNotFound     ErrorCode = "not_found"
	ErrOffline      ErrorCode = "offline"
)

// Surface names the part of the system a failure belongs to.
type Surface string

const (
	SurfaceAPI  Surface = "api"
	SurfaceAuth Surface = "auth"
	SurfaceChat Surface = "chat"
)

// APIError is the taxonomy error returned by handlers. Cause holds the
// underlying detail when one exists; the response body uses the
// code:surface message unless Cause overrides it.
type APIError struct {
	Code    ErrorCode
	Surface Surface
	Cause   string
}

func (e *APIError) Error() string {
	if e.Cause != "" {
		return fmt.Sprintf("%s:%s: %s", e.Code, e.Surface, e.Cause)
	}
	return fmt.Sprintf("%s:%s", e.Code, e.Surface)
}

// apiError constructs a taxonomy error with an optional cause.
func apiError(code ErrorCode, surface Surface, cause string) *APIError {
	return &APIError{Code: code, Surface: surface, Cause: cause}
}

// Status maps the code to its HTTP status.
func (e *APIError) Status() int {
	switch e.Code {
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrOffline:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Message is the user-visible text for the error.
func (e *APIError) Message() string {
	if e.Cause != "" {
		return e.Cause
	}
	switch {
	case e.Code == ErrUnauthorized:
		return "You need to sign in before continuing."
	case e.Code == ErrForbidden && e.Surface == SurfaceAuth:
		return "Your account does not have access to this feature."
	case e.Code == ErrForbidden:
		return "Access denied."
	case e.Code == ErrBadRequest:
		return "The request couldn't be processed. Please check your input and try again."
	case e.Code == ErrNotFound && e.Surface == SurfaceChat:
		return "The requested chat was not found."
	case e.Code == ErrNotFound:
		return "The requested resource was not found."
	case e.Code == ErrOffline:
		return "We're having trouble connecting. Please check your internet connection and try again."
	default:
		return "Something went wrong. Please try again later."
	}
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
