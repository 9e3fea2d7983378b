package workflow

import (
	"fmt"
	"strings"
)

// CompensationError aggregates failures from a rollback sweep.
//
// It is never returned from Run: a failed run always surfaces the
// original step error, untouched, so upstream branching on the error
// message keeps working. CompensationError exists for logging and for
// the run record, where a sweep that lost work must be visible.
type CompensationError struct {
	// Errors holds one wrapped error per failed compensation, in
	// sweep (reverse completion) order.
	Errors []error
}

func (e *CompensationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("compensation errors: [%s]", strings.Join(msgs, "; "))
}

// Unwrap exposes the individual compensation failures to errors.Is and
// errors.As.
func (e *CompensationError) Unwrap() []error { return e.Errors }
