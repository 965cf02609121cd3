package errors

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
)

// Machine-readable error codes returned by the license server API.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeMalformedKey     = "MALFORMED_LICENSE_KEY"
	CodeInvalidSignature = "INVALID_LICENSE_SIGNATURE"
	CodeNotFound         = "LICENSE_NOT_FOUND"
	CodeRevoked          = "LICENSE_REVOKED"
	CodeSuspended        = "LICENSE_SUSPENDED"
	CodeExpired          = "LICENSE_EXPIRED"
	CodeActivationLimit  = "ACTIVATION_LIMIT_EXCEEDED"
	CodeInternal         = "INTERNAL_SERVER_ERROR"
)

// APIError is a structured API error response implementing render.Renderer.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// NewAPIError creates an APIError with the given parameters.
func NewAPIError(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// InvalidRequest wraps a request binding or validation failure.
func InvalidRequest(err error) *APIError {
	return &APIError{
		StatusCode: http.StatusBadRequest,
		ErrorCode:  CodeInvalidRequest,
		Message:    "invalid request",
		Details:    err.Error(),
	}
}

// Internal wraps an unexpected server-side failure without leaking detail.
func Internal(err error) *APIError {
	return &APIError{
		StatusCode: http.StatusInternalServerError,
		ErrorCode:  CodeInternal,
		Message:    "an unexpected error occurred",
	}
}

// ToAPIError maps a domain error to its HTTP representation. Unrecognized
// errors become 500s.
func ToAPIError(err error) *APIError {
	var limitErr *ActivationLimitError
	switch {
	case errors.Is(err, ErrLicenseNotFound):
		return NewAPIError(http.StatusNotFound, CodeNotFound, "the license key was not found")
	case errors.Is(err, ErrLicenseRevoked):
		return NewAPIError(http.StatusForbidden, CodeRevoked, "this license has been revoked")
	case errors.Is(err, ErrLicenseSuspended):
		return NewAPIError(http.StatusForbidden, CodeSuspended, "this license is suspended")
	case errors.Is(err, ErrLicenseExpired):
		return NewAPIError(http.StatusForbidden, CodeExpired, "this license has expired")
	case errors.As(err, &limitErr):
		e := NewAPIError(http.StatusConflict, CodeActivationLimit, limitErr.Error())
		e.Details = map[string]int{"current": limitErr.Current, "max": limitErr.Max}
		return e
	case errors.Is(err, ErrMalformedKey):
		return NewAPIError(http.StatusBadRequest, CodeMalformedKey, "the license key is malformed")
	case errors.Is(err, ErrInvalidSignature):
		return NewAPIError(http.StatusBadRequest, CodeInvalidSignature, "the license key signature is invalid")
	default:
		return Internal(err)
	}
}

// FromCode converts a server error_code back to the matching sentinel error.
// Used by the backend client to surface typed negatives to the manager.
func FromCode(code, message string) error {
	switch code {
	case CodeNotFound:
		return ErrLicenseNotFound
	case CodeRevoked:
		return ErrLicenseRevoked
	case CodeSuspended:
		return ErrLicenseSuspended
	case CodeExpired:
		return ErrLicenseExpired
	case CodeActivationLimit:
		return &ActivationLimitError{}
	case CodeMalformedKey:
		return ErrMalformedKey
	case CodeInvalidSignature:
		return ErrInvalidSignature
	default:
		return errors.New(message)
	}
}
