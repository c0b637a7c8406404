package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError is a single field-level violation.
type ValidationError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// Response is the wire body of every non-2xx response.
type Response struct {
	Detail           string            `json:"detail"`
	ErrorCode        Code              `json:"error_code"`
	ValidationErrors []ValidationError `json:"validation_errors,omitempty"`
}

// Error is a classified failure. Detail is safe to show to callers;
// Cause is for server-side logs only.
type Error struct {
	Kind             Kind
	Status           int
	Code             Code
	Detail           string
	ValidationErrors []ValidationError
	Cause            error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.code(), e.detail())
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code, so errors.Is(err, errs.ProjectNotFound("")) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code() == t.code()
}

// StatusCode returns the HTTP status, derived from Kind when unset.
func (e *Error) StatusCode() int {
	if e.Status != 0 {
		return e.Status
	}
	return e.Kind.Status()
}

func (e *Error) code() Code {
	if e.Code != "" {
		return e.Code
	}
	return CodeForStatus(e.StatusCode(), e.Kind)
}

func (e *Error) detail() string {
	if e.StatusCode() >= http.StatusInternalServerError {
		return DefaultDetail(e.StatusCode())
	}
	if e.Detail != "" {
		return e.Detail
	}
	return DefaultDetail(e.StatusCode())
}

// Response builds the wire body. Validation errors are only emitted for validation failures.
func (e *Error) Response() Response {
	resp := Response{
		Detail:    e.detail(),
		ErrorCode: e.code(),
	}
	if e.Kind == KindValidation && len(e.ValidationErrors) > 0 {
		resp.ValidationErrors = e.ValidationErrors
	}
	return resp
}

// GetCode extracts the code from any error. Unclassified errors are internal.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.code()
	}
	return CodeInternalServerError
}

// IsCode checks if the error carries the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// Resolve classifies any error. Explicit domain errors win over
// request-shape failures, which win over the internal catch-all.
func Resolve(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	if v := fromBinding(err, "body"); v != nil {
		return v
	}

	return Internal(err)
}

// Common error constructors

func InvalidAPIKey(detail string) *Error {
	return &Error{Kind: KindAuthentication, Code: CodeInvalidAPIKey, Detail: detail}
}

func Unauthorized(detail string) *Error {
	return &Error{Kind: KindAuthorization, Code: CodeUnauthorized, Detail: detail}
}

func NotFound(detail string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Detail: detail}
}

func ProjectNotFound(id string) *Error {
	return &Error{
		Kind:   KindNotFound,
		Code:   CodeProjectNotFound,
		Detail: fmt.Sprintf("Project not found: %s", id),
	}
}

func MethodNotAllowed() *Error {
	return &Error{Kind: KindBadRequest, Status: http.StatusMethodNotAllowed}
}

func InvalidStatusTransition(detail string) *Error {
	return &Error{Kind: KindConflict, Code: CodeInvalidStatusTransition, Detail: detail}
}

func Validation(detail string, violations ...ValidationError) *Error {
	return &Error{
		Kind:             KindValidation,
		Code:             CodeValidationError,
		Detail:           detail,
		ValidationErrors: violations,
	}
}

func InvalidTier(detail string) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidTier, Detail: detail}
}

func InvalidQuery(detail string, violations ...ValidationError) *Error {
	return &Error{
		Kind:             KindValidation,
		Code:             CodeInvalidQuery,
		Detail:           detail,
		ValidationErrors: violations,
	}
}

func ProjectLimitExceeded(detail string) *Error {
	return &Error{Kind: KindQuotaExceeded, Code: CodeProjectLimitExceeded, Detail: detail}
}

func ServiceUnavailable(cause error) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusServiceUnavailable, Cause: cause}
}

// Internal wraps an unexpected failure. The cause never reaches the response body.
func Internal(cause error) *Error {
	return &Error{
		Kind:   KindInternal,
		Code:   CodeInternalServerError,
		Detail: InternalDetail,
		Cause:  cause,
	}
}
