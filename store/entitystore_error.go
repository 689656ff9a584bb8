package store

import (
	"errors"
	"fmt"
)

// ErrorType is the base type of error that are returned
type ErrorType int

const (
	// SerializationFailed is returned when an entity can not be encoded or decoded
	SerializationFailed ErrorType = iota + 1
	// EntityNotFound is returned when a requested entity was not found
	EntityNotFound
	// VersionConflict is returned when an entity should be saved with a too old version
	VersionConflict
	// InternalError is returned in all other cases
	InternalError
	// InvalidArgument is returned for malformed identifiers or entities
	InvalidArgument
)

func (t ErrorType) String() string {
	switch t {
	case SerializationFailed:
		return "SerializationFailed"
	case EntityNotFound:
		return "NotFound"
	case VersionConflict:
		return "Conflict"
	case InternalError:
		return "InternalError"
	case InvalidArgument:
		return "InvalidArgument"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// StoreError is returned by the repository and the backends
type StoreError struct {
	Text       string
	ErrorType  ErrorType
	InnerError error
}

func (e StoreError) Error() string {
	if e.InnerError == nil {
		return fmt.Sprintf("%s: %s", e.ErrorType, e.Text)
	}
	return fmt.Sprintf("%s: %s -- Inner error: %s", e.ErrorType, e.Text, e.InnerError)
}

func (e StoreError) Unwrap() error {
	return e.InnerError
}

func newError(errorType ErrorType, inner error, format string, args ...interface{}) StoreError {
	return StoreError{
		Text:       fmt.Sprintf(format, args...),
		ErrorType:  errorType,
		InnerError: inner,
	}
}

// TypeOf returns the ErrorType carried by err, 0 if err is not a StoreError
func TypeOf(err error) ErrorType {
	var serr StoreError
	if errors.As(err, &serr) {
		return serr.ErrorType
	}
	return 0
}

// IsNotFound reports whether err is an EntityNotFound error
func IsNotFound(err error) bool { return TypeOf(err) == EntityNotFound }

// IsConflict reports whether err is a VersionConflict error
func IsConflict(err error) bool { return TypeOf(err) == VersionConflict }

// IsInvalidArgument reports whether err is an InvalidArgument error
func IsInvalidArgument(err error) bool { return TypeOf(err) == InvalidArgument }
