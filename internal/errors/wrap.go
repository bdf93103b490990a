package errors

import (
	"errors"
	"fmt"
)

// WrappedError pairs an internal failure with what the bot may tell the
// user about it.
type WrappedError struct {
	Module      string // e.g. "dialog"
	Operation   string // e.g. "load_session" or a handler name
	Cause       error
	UserMessage string
}

func (e *WrappedError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Module, e.Operation, e.Cause)
}

func (e *WrappedError) Unwrap() error {
	return e.Cause
}

// ErrorWrapper stamps errors of one module operation.
type ErrorWrapper struct {
	module    string
	operation string
}

// NewWrapper returns a wrapper for operation in module.
func NewWrapper(module, operation string) ErrorWrapper {
	return ErrorWrapper{module: module, operation: operation}
}

// Wrap attaches userMessage to err. A nil err stays nil.
func (w ErrorWrapper) Wrap(err error, userMessage string) error {
	if err == nil {
		return nil
	}
	return &WrappedError{Module: w.module, Operation: w.operation, Cause: err, UserMessage: userMessage}
}

// GetUserMessage returns the user message of the outermost WrappedError in
// err's chain, or fallback when there is none.
func GetUserMessage(err error, fallback string) string {
	var wrapped *WrappedError
	if errors.As(err, &wrapped) && wrapped.UserMessage != "" {
		return wrapped.UserMessage
	}
	return fallback
}
