package errors

import (
	sterrors "errors"
	"fmt"
)

// Categories. Every argument or lookup error returned by the bus wraps one of
// these, so callers can branch with errors.Is without knowing the exact cause.
var (
	ErrInvalidArgument = sterrors.New("magicbus: invalid argument")
	ErrNotFound        = sterrors.New("magicbus: not found")
)

var (
	ErrInterestRequired     = fmt.Errorf("%w: interest type is required", ErrInvalidArgument)
	ErrHandlerRequired      = fmt.Errorf("%w: handler is required", ErrInvalidArgument)
	ErrHandlerNotComparable = fmt.Errorf("%w: handler must be comparable", ErrInvalidArgument)
	ErrMessageRequired      = fmt.Errorf("%w: message is required", ErrInvalidArgument)
	ErrReturnedSinkRequired = fmt.Errorf("%w: returned message sink is required", ErrInvalidArgument)
	ErrFailedSinkRequired   = fmt.Errorf("%w: failed message sink is required", ErrInvalidArgument)
	ErrObserverRequired     = fmt.Errorf("%w: observer is required", ErrInvalidArgument)
	ErrPublisherRequired    = fmt.Errorf("%w: publisher is required", ErrInvalidArgument)
	ErrWriterRequired       = fmt.Errorf("%w: writer is required", ErrInvalidArgument)

	ErrUnknownInterest = fmt.Errorf("%w: no subscriptions for interest type", ErrNotFound)
	ErrNotSubscribed   = fmt.Errorf("%w: handler is not subscribed", ErrNotFound)
)

// ErrDefect marks a handler error as a programming defect. The bus does not
// report such errors to the failed sink; it aborts the post and returns them.
var ErrDefect = sterrors.New("magicbus: defect")

// Defect wraps err so the default classifier treats it as non-recoverable.
func Defect(err error) error {
	if err == nil {
		return nil
	}
	if sterrors.Is(err, ErrDefect) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrDefect, err)
}

// ConfigValidationError wraps the joined errors produced by Config.Validate.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "magicbus: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError returns nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
