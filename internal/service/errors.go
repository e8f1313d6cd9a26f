// Package service holds the blog's business rules on top of the cached
// repositories: validation, ownership checks and uniqueness.
package service

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Code string

const (
	CodeNotFound     Code = "NOT_FOUND"
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeForbidden    Code = "FORBIDDEN"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeConflict     Code = "CONFLICT"
)

// Error is a domain error. Anything else returned by a service is internal.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *Error) Error() string { return e.Message }

func NotFound(resource, id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s with ID %s not found", resource, id)}
}

func Invalid(field, message string) *Error {
	return &Error{Code: CodeValidation, Message: field + ": " + message, Field: field}
}

func Forbidden(action string) *Error {
	return &Error{Code: CodeForbidden, Message: "You don't have permission to " + action}
}

func Unauthorized(message string) *Error {
	return &Error{Code: CodeUnauthorized, Message: message}
}

func Conflict(resource string) *Error {
	return &Error{Code: CodeConflict, Message: resource + " already exists"}
}

// CodeOf returns the domain code of err, or "" for internal errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// check runs the rules against the trimmed value and reports the first failure
// as a validation error on field.
func check(field, value string, rules ...validation.Rule) error {
	if err := validation.Validate(strings.TrimSpace(value), rules...); err != nil {
		return Invalid(field, err.Error())
	}
	return nil
}

// checkOptional validates value only when it was supplied.
func checkOptional(field string, value *string, rules ...validation.Rule) error {
	if value == nil {
		return nil
	}
	return check(field, *value, rules...)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}
