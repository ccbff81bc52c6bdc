package dispatch

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnknownAction is the cause of errors returned for actions missing from the table
var ErrUnknownAction = errors.New("unknown action")

// InvalidArgumentError is returned by handlers declining a request with bad arguments
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string {
	return "invalid argument: " + e.Message
}

// InvalidArgument creates an InvalidArgumentError
func InvalidArgument(format string, args ...interface{}) error {
	return &InvalidArgumentError{Message: fmt.Sprintf(format, args...)}
}

// IsInvalidArgument returns if err is or wraps an InvalidArgumentError
func IsInvalidArgument(err error) bool {
	var iae *InvalidArgumentError
	return errors.As(err, &iae)
}

// IsUnknownAction returns if err was caused by an unknown action
func IsUnknownAction(err error) bool {
	return errors.Cause(err) == ErrUnknownAction
}
