package core

import (
	"errors"
	"strings"
)

// FieldError describes one rejected input field. Err, when set, is the
// domain sentinel behind the rejection.
type FieldError struct {
	Loc  []string
	Msg  string
	Type string
	Err  error
}

func (e FieldError) Error() string {
	return strings.Join(e.Loc, ".") + ": " + e.Msg
}

func (e FieldError) Unwrap() error {
	return e.Err
}

// ValidationErrors is returned when input fails schema checks. It never
// reaches storage.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes every field error to errors.Is and errors.As.
func (v ValidationErrors) Unwrap() []error {
	out := make([]error, len(v))
	for i, e := range v {
		out[i] = e
	}
	return out
}

// Prefix returns a copy of v with loc prepended to every location.
func (v ValidationErrors) Prefix(loc ...string) ValidationErrors {
	out := make(ValidationErrors, len(v))
	for i, e := range v {
		e.Loc = append(append([]string(nil), loc...), e.Loc...)
		out[i] = e
	}
	return out
}

// AsValidationErrors unwraps err into ValidationErrors if it is one.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var v ValidationErrors
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
