// Package errs shapes every failure into the public error contract:
// {"detail": ..., "error_code": ..., "validation_errors"?: [...]}.
package errs

import "net/http"

// Code is a machine-readable error token in UPPER_SNAKE_CASE.
// Clients branch on Code; Detail is for humans.
type Code string

const (
	CodeInvalidAPIKey           Code = "INVALID_API_KEY"
	CodeUnauthorized            Code = "UNAUTHORIZED"
	CodeNotFound                Code = "NOT_FOUND"
	CodeProjectNotFound         Code = "PROJECT_NOT_FOUND"
	CodeMethodNotAllowed        Code = "METHOD_NOT_ALLOWED"
	CodeConflict                Code = "CONFLICT"
	CodeInvalidStatusTransition Code = "INVALID_STATUS_TRANSITION"
	CodeValidationError         Code = "VALIDATION_ERROR"
	CodeInvalidTier             Code = "INVALID_TIER"
	CodeInvalidQuery            Code = "INVALID_QUERY"
	CodeProjectLimitExceeded    Code = "PROJECT_LIMIT_EXCEEDED"
	CodeBadRequest              Code = "BAD_REQUEST"
	CodeInternalServerError     Code = "INTERNAL_SERVER_ERROR"
	CodeServiceUnavailable      Code = "SERVICE_UNAVAILABLE"
)

// Kind classifies a failure independently of its wire code.
type Kind int

const (
	KindInternal Kind = iota
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindValidation
	KindQuotaExceeded
	KindBadRequest
)

// Status returns the HTTP status associated with the kind.
func (k Kind) Status() int {
	switch k {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindQuotaExceeded:
		return http.StatusTooManyRequests
	case KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindBadRequest:
		return "bad_request"
	default:
		return "internal"
	}
}

// CodeForStatus derives the error code for a status when none was supplied.
// A 401 is INVALID_API_KEY only for authentication failures; any other 401 is UNAUTHORIZED.
func CodeForStatus(status int, kind Kind) Code {
	switch status {
	case http.StatusUnauthorized:
		if kind == KindAuthentication {
			return CodeInvalidAPIKey
		}
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeUnauthorized
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusMethodNotAllowed:
		return CodeMethodNotAllowed
	case http.StatusConflict:
		return CodeConflict
	case http.StatusUnprocessableEntity:
		return CodeValidationError
	case http.StatusTooManyRequests:
		return CodeProjectLimitExceeded
	case http.StatusServiceUnavailable:
		return CodeServiceUnavailable
	}

	if status >= 500 {
		return CodeInternalServerError
	}
	return CodeBadRequest
}

// InternalDetail is the only detail an unclassified failure ever exposes.
const InternalDetail = "An unexpected error occurred. Please try again later."

// DefaultDetail returns a human-readable message for a status with no explicit detail.
func DefaultDetail(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "Authentication required."
	case http.StatusForbidden:
		return "You are not authorized to perform this action."
	case http.StatusNotFound:
		return "The requested resource was not found."
	case http.StatusMethodNotAllowed:
		return "Method not allowed."
	case http.StatusConflict:
		return "The request conflicts with the current state of the resource."
	case http.StatusUnprocessableEntity:
		return "Request validation failed."
	case http.StatusTooManyRequests:
		return "Project limit exceeded."
	case http.StatusServiceUnavailable:
		return "Service temporarily unavailable. Please try again later."
	}

	if status >= 500 {
		return InternalDetail
	}
	return "Bad request."
}
