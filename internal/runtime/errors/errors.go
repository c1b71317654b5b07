package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrConfigRequired      = sterrors.New("botcore: configuration is required")
	ErrLoggerRequired      = sterrors.New("botcore: logger is required")
	ErrStoreRequired       = sterrors.New("botcore: state store is required")
	ErrTokenRequired       = sterrors.New("botcore: could not find BOT_TOKEN in your environment")
	ErrHandlerRequired     = sterrors.New("botcore: handler function is required")
	ErrHandlerNameRequired = sterrors.New("botcore: handler name is required")
	ErrEventTypeRequired   = sterrors.New("botcore: event type is required")
	ErrGuardNameRequired   = sterrors.New("botcore: guard name is required")
	ErrGuardCheckRequired  = sterrors.New("botcore: guard check function is required")
	ErrUnknownStateBackend = sterrors.New("botcore: unknown state backend")
	ErrChannelNotFound     = sterrors.New("botcore: channel not found")
	ErrChannelNotText      = sterrors.New("botcore: channel is not text-capable")
	ErrGatewayClosed       = sterrors.New("botcore: gateway connection is closed")
	ErrInvalidSession      = sterrors.New("botcore: gateway rejected the session")
	ErrBusClosed           = sterrors.New("botcore: event bus is not running")
	ErrAlreadyStarted      = sterrors.New("botcore: runtime already started")
)

// FatalError marks a startup failure that must stop the runtime before it
// connects anywhere. It is never retried.
type FatalError struct {
	Err error
}

func (e FatalError) Error() string {
	return fmt.Sprintf("botcore: fatal startup error: %v", e.Err)
}

func (e FatalError) Unwrap() error {
	return e.Err
}

// NewFatalError wraps err, returning nil for a nil err.
func NewFatalError(err error) error {
	if err == nil {
		return nil
	}
	return FatalError{Err: err}
}

// IsFatal reports whether err carries a FatalError anywhere in its chain.
func IsFatal(err error) bool {
	var fatal FatalError
	return sterrors.As(err, &fatal)
}

// StorageError is returned by every state store operation that failed in the
// persistence layer.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("botcore: storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("botcore: storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err for the given operation and key.
func NewStorageError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Key: key, Err: err}
}

// GuardFaultError describes a guard that failed instead of returning a verdict.
// The chain treats it as a veto.
type GuardFaultError struct {
	Guard string
	Err   error
}

func (e *GuardFaultError) Error() string {
	return fmt.Sprintf("botcore: guard %q failed: %v", e.Guard, e.Err)
}

func (e *GuardFaultError) Unwrap() error {
	return e.Err
}

// HandlerFaultError describes a handler that returned an error or panicked
// after a permitted dispatch.
type HandlerFaultError struct {
	EventType string
	Handler   string
	Err       error
}

func (e *HandlerFaultError) Error() string {
	return fmt.Sprintf("botcore: handler %q for %s failed: %v", e.Handler, e.EventType, e.Err)
}

func (e *HandlerFaultError) Unwrap() error {
	return e.Err
}

// ConfigValidationError wraps configuration validation failures.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("botcore: invalid configuration: %v", e.Err)
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError wraps err, returning nil for a nil err.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}

// PanicError converts a recovered panic value into an error.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// FromPanic returns the recovered value as an error, keeping it unchanged when
// it already is one.
func FromPanic(recovered any) error {
	if err, ok := recovered.(error); ok {
		return err
	}
	return PanicError{Value: recovered}
}
