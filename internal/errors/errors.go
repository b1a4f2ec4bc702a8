// Package errors provides the structured error type used across the duel server.
// Every error that reaches a transport carries a Code which decides how it is
// reported to the caller and at which level it is logged.
package errors

import (
	nativeerrors "errors"
	"fmt"

	"go.uber.org/zap"
)

// Details holds additional error details that can be viewed and logged.
type Details map[string]any

// Error is the general error type for errors appearing in the duel server.
type Error struct {
	// Code is the error code.
	Code Code
	// Kind narrows down the Code, for example which resource was not found.
	Kind Kind
	// Err is the original error that occurred.
	Err error
	// Message is the manually created message that can be used in order to trace the error.
	Message string
	// Details holds any error details.
	Details Details
}

func (e Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e Error) Unwrap() error {
	return e.Err
}

// Cast casts the given error to Error. If the given one is not of type Error, an
// unknown one with error code ErrUnexpected is created and false returned.
func Cast(err error) (Error, bool) {
	var e Error
	if nativeerrors.As(err, &e) {
		return e, true
	}
	return Error{
		Code:    ErrUnexpected,
		Err:     err,
		Message: "unknown operation",
		Details: make(Details),
	}, false
}

// CodeOf returns the Code of the given error or ErrUnexpected if it is not an Error.
func CodeOf(err error) Code {
	e, _ := Cast(err)
	return e.Code
}

// KindOf returns the Kind of the given error. Plain errors have an empty Kind.
func KindOf(err error) Kind {
	e, _ := Cast(err)
	return e.Kind
}

// Wrap wraps the given error with the given message. Code and Kind are kept.
func Wrap(err error, message string, details Details) error {
	e, ok := Cast(err)
	var errMsg string
	if ok {
		errMsg = fmt.Sprintf("%s: %s", message, e.Message)
	} else {
		errMsg = message
	}
	merged := make(Details, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		// Keep the original value under a prefixed key.
		if originalV, ok := merged[k]; ok {
			merged[fmt.Sprintf("_%s", k)] = originalV
		}
		merged[k] = v
	}
	return Error{
		Code:    e.Code,
		Kind:    e.Kind,
		Err:     e.Err,
		Message: errMsg,
		Details: merged,
	}
}

// Log logs the given error with its details. The level depends on the Code.
func Log(logger *zap.Logger, err error) {
	e, _ := Cast(err)
	fields := make([]zap.Field, 0, len(e.Details)+3)
	fields = append(fields, zap.String("err_code", string(e.Code)))
	if e.Kind != "" {
		fields = append(fields, zap.String("err_kind", string(e.Kind)))
	}
	if e.Err != nil {
		fields = append(fields, zap.NamedError("err_orig", e.Err))
	}
	for k, v := range e.Details {
		fields = append(fields, zap.Any(fmt.Sprintf("err_details_%s", k), v))
	}
	switch e.Code {
	case ErrBadRequest, ErrNotFound, ErrForbidden, ErrInvalidState, ErrInsufficientResource, ErrRulesViolation:
		logger.Debug(e.Error(), fields...)
	case ErrCommunication:
		logger.Warn(e.Error(), fields...)
	default:
		logger.Error(e.Error(), fields...)
	}
}
