package nego

import (
	"errors"
	"fmt"
)

// UserError carries a message safe to surface verbatim to the user:
// missing pins, unresolved suppliers, unsupported requests.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

// Userf builds a UserError the fmt.Errorf way.
func Userf(format string, args ...any) error {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// AsUserError unwraps a UserError from an error chain.
func AsUserError(err error) (*UserError, bool) {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
