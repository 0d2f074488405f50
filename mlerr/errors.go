package mlerr

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Use errors.Is(err, ErrX) to classify a failure.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrInsufficientData  = errors.New("insufficient data")
	ErrEnsembleAmbiguity = errors.New("ensemble ambiguity")
	ErrModelNotFound     = errors.New("model not found")
	ErrComputation       = errors.New("computation error")
)

// Error carries the failing operation, the parameter (table, column or
// option name) the caller has to fix and the underlying cause, if any.
type Error struct {
	Kind  error
	Op    string
	Param string
	Msg   string
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Param != "" {
		msg += " (" + e.Param + ")"
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the error kind sentinel.
func (e *Error) Is(target error) bool { return e.Kind == target }

func newError(kind error, op, param string, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Param: param, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// Configuration reports an invalid setting, function signature or dimension.
func Configuration(op, param, format string, args ...interface{}) *Error {
	return newError(ErrConfiguration, op, param, nil, format, args...)
}

// InsufficientData reports an empty or too small input.
func InsufficientData(op, param, format string, args ...interface{}) *Error {
	return newError(ErrInsufficientData, op, param, nil, format, args...)
}

// EnsembleAmbiguity reports a single-model request against several models.
func EnsembleAmbiguity(op, param, format string, args ...interface{}) *Error {
	return newError(ErrEnsembleAmbiguity, op, param, nil, format, args...)
}

// ModelNotFound reports a missing model table or identifier set.
func ModelNotFound(op, param, format string, args ...interface{}) *Error {
	return newError(ErrModelNotFound, op, param, nil, format, args...)
}

// Computation wraps a failure of the bulk computation step.
func Computation(err error, op, param, format string, args ...interface{}) *Error {
	return newError(ErrComputation, op, param, err, format, args...)
}

// Wrap classifies err as a computation error unless it already carries a
// kind, in which case it is returned unchanged.
func Wrap(err error, op, param string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Computation(err, op, param, "")
}
