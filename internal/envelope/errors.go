// ABOUTME: Domain errors tools return to Wrap: NotFoundError, InputError and AmbiguousError.
// ABOUTME: Wrap renders them as error or multiple_results envelopes.

package envelope

import "fmt"

// NotFoundError is a named resource (library, item, playlist, user) that does
// not exist. Its message is shown verbatim.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// NotFound builds a NotFoundError.
func NotFound(format string, args ...any) error {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// InputError is a caller mistake in the arguments, such as a missing
// identifier. Its message is shown verbatim.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return e.Message }

// Invalid builds an InputError.
func Invalid(format string, args ...any) error {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}

// AmbiguousError is a title lookup that matched more than one entity. It is
// an ordinary outcome: Wrap renders it as a multiple_results envelope.
type AmbiguousError struct {
	Message    string
	Count      int
	Candidates []Candidate
}

func (e *AmbiguousError) Error() string { return e.Message }
