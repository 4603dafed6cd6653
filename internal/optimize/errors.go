package optimize

import (
	"errors"
	"fmt"

	"github.com/h2econ/h2opt/internal/model"
)

// Kind classifies engine errors. All kinds are fatal at bind time; the
// engine never raises them mid-search.
type Kind string

const (
	// KindConfiguration marks malformed or unresolvable optimization
	// settings (unknown method, zero dimension, bad iteration counts).
	KindConfiguration Kind = "configuration"
	// KindValidation marks invalid parameter declarations, e.g. a lower
	// bound above the upper bound.
	KindValidation Kind = "validation"
	// KindDimension marks a vector whose length does not match the number
	// of bound parameters.
	KindDimension Kind = "dimension"
)

// Error is an engine error with enough context to fix the offending
// configuration: the kind, the parameter path when one is involved, and
// an optional underlying error.
type Error struct {
	Kind    Kind
	Path    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Kind)
	if e.Path != "" {
		msg += fmt.Sprintf(" at %q", e.Path)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func configErrorf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

func validationErrorf(path string, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Path: path, Message: fmt.Sprintf(format, args...)}
}

func dimensionErrorf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindDimension, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is an engine error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsPathNotFound reports whether err stems from a parameter path that does
// not resolve in the cost model.
func IsPathNotFound(err error) bool {
	var e *model.PathNotFoundError
	return errors.As(err, &e)
}

// IsTypeMismatch reports whether err stems from a parameter path that
// resolves to a non-numeric field.
func IsTypeMismatch(err error) bool {
	var e *model.TypeMismatchError
	return errors.As(err, &e)
}
