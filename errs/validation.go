package errs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// BindingError normalizes a request binding failure into a VALIDATION_ERROR.
// source is the first element of every loc ("body", "query", "path").
func BindingError(err error, source string) *Error {
	if v := fromBinding(err, source); v != nil {
		return v
	}
	return Validation("Request validation failed.", ValidationError{
		Loc:  []string{source},
		Msg:  "invalid request",
		Type: "value_error",
	})
}

// FieldName resolves the wire name of a struct field for validation messages,
// preferring the json tag, then the form tag.
func FieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return strings.ToLower(fld.Name)
}

func fromBinding(err error, source string) *Error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		violations := make([]ValidationError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			violations = append(violations, fieldViolation(fe, source))
		}
		return Validation("Request validation failed.", violations...)
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return Validation("Request body is not valid JSON.", ValidationError{
			Loc:  []string{source},
			Msg:  fmt.Sprintf("invalid JSON at offset %d", syntaxErr.Offset),
			Type: "value_error.jsondecode",
		})
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		loc := []string{source}
		if typeErr.Field != "" {
			loc = append(loc, strings.Split(typeErr.Field, ".")...)
		}
		return Validation("Request validation failed.", ValidationError{
			Loc:  loc,
			Msg:  fmt.Sprintf("expected %s", typeErr.Type.String()),
			Type: "type_error." + typeErr.Type.Kind().String(),
		})
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return Validation("Request body is required.", ValidationError{
			Loc:  []string{source},
			Msg:  "field required",
			Type: "value_error.missing",
		})
	}

	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return Validation("Request validation failed.", ValidationError{
			Loc:  []string{source},
			Msg:  fmt.Sprintf("value is not a valid integer: %q", numErr.Num),
			Type: "type_error.integer",
		})
	}

	return nil
}

func fieldViolation(fe validator.FieldError, source string) ValidationError {
	loc := []string{source, fe.Field()}
	isString := fe.Kind() == reflect.String

	switch fe.Tag() {
	case "required":
		return ValidationError{Loc: loc, Msg: "field required", Type: "value_error.missing"}
	case "max":
		if isString {
			return ValidationError{
				Loc:  loc,
				Msg:  fmt.Sprintf("ensure this value has at most %s characters", fe.Param()),
				Type: "value_error.any_str.max_length",
			}
		}
		return ValidationError{
			Loc:  loc,
			Msg:  fmt.Sprintf("ensure this value is less than or equal to %s", fe.Param()),
			Type: "value_error.number.not_le",
		}
	case "min":
		if isString {
			return ValidationError{
				Loc:  loc,
				Msg:  fmt.Sprintf("ensure this value has at least %s characters", fe.Param()),
				Type: "value_error.any_str.min_length",
			}
		}
		return ValidationError{
			Loc:  loc,
			Msg:  fmt.Sprintf("ensure this value is greater than or equal to %s", fe.Param()),
			Type: "value_error.number.not_ge",
		}
	default:
		return ValidationError{
			Loc:  loc,
			Msg:  fmt.Sprintf("failed validation on %s", fe.Tag()),
			Type: "value_error." + fe.Tag(),
		}
	}
}
