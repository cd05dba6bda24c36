// Package errs defines the error kinds from spec.md §7 as sentinel errors,
// wrapped with errors.Is/As support instead of the teacher's
// string-category matching, so the Dispatcher can format
// "ErrorKind: message" without re-parsing free text.
package errs

import "errors"

var (
	// ErrInput covers an unreadable PDF/image or a bad mode.
	ErrInput = errors.New("InputError")
	// ErrInference covers an engine refusal, timeout, or malformed payload.
	ErrInference = errors.New("InferenceError")
	// ErrParse covers an unparseable detection block; absorbed inside the
	// Grounding Codec and never propagated as a job failure.
	ErrParse = errors.New("ParseError")
	// ErrIO covers filesystem/archive failures.
	ErrIO = errors.New("IOError")
	// ErrState covers a task row disappearing mid-run; a silent no-op
	// abort, not a reported failure.
	ErrState = errors.New("StateError")
)

// Wrap attaches kind to err through a multi-error Unwrap() []error, so
// callers can match with errors.Is(err, errs.ErrInput) while the message
// ("Kind: detail") still carries err's detail.
func Wrap(kind error, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, cause: err}
}

type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *kindError) Unwrap() []error { return []error{e.kind, e.cause} }
