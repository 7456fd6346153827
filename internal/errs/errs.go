// Package errs holds typed parameter errors shared by the adapter packages.
// Each error unwraps to a package sentinel so callers can branch with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrValueIsRequired   = errors.New("value is required")
	ErrValueIsInvalid    = errors.New("value is invalid")
	ErrValueIsOutOfRange = errors.New("value is out of range")
	ErrObjectNotFound    = errors.New("object not found")
)

type ValueIsRequiredError struct {
	ParamName string
}

func NewValueIsRequiredError(paramName string) *ValueIsRequiredError {
	return &ValueIsRequiredError{ParamName: paramName}
}

func (e *ValueIsRequiredError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValueIsRequired, e.ParamName)
}

func (e *ValueIsRequiredError) Unwrap() error { return ErrValueIsRequired }

type ValueIsInvalidError struct {
	ParamName string
	Reason    string
}

func NewValueIsInvalidError(paramName, reason string) *ValueIsInvalidError {
	return &ValueIsInvalidError{ParamName: paramName, Reason: reason}
}

func (e *ValueIsInvalidError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s", ErrValueIsInvalid, e.ParamName)
	}
	return fmt.Sprintf("%s: %s (%s)", ErrValueIsInvalid, e.ParamName, e.Reason)
}

func (e *ValueIsInvalidError) Unwrap() error { return ErrValueIsInvalid }

type ValueIsOutOfRangeError struct {
	ParamName string
	Value     int64
	Min       int64
	Max       int64
}

func NewValueIsOutOfRangeError(paramName string, value, min, max int64) *ValueIsOutOfRangeError {
	return &ValueIsOutOfRangeError{ParamName: paramName, Value: value, Min: min, Max: max}
}

func (e *ValueIsOutOfRangeError) Error() string {
	return fmt.Sprintf("%s: %s is %d, min value is %d, max value is %d", ErrValueIsOutOfRange, e.ParamName, e.Value, e.Min, e.Max)
}

func (e *ValueIsOutOfRangeError) Unwrap() error { return ErrValueIsOutOfRange }

type ObjectNotFoundError struct {
	ParamName string
	ID        string
}

func NewObjectNotFoundError(paramName, id string) *ObjectNotFoundError {
	return &ObjectNotFoundError{ParamName: paramName, ID: id}
}

func (e *ObjectNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s %q", ErrObjectNotFound, e.ParamName, e.ID)
}

func (e *ObjectNotFoundError) Unwrap() error { return ErrObjectNotFound }
