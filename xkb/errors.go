package xkb

import "errors"

var (
	ErrIncludePath         = errors.New("include path unusable")
	ErrIncludePathNotExist = errors.New("include path does not exist")
	ErrIncludePathNotDir   = errors.New("include path is not a directory")
	ErrKeymapCreation      = errors.New("keymap creation failed")
	ErrInvalidLogLevel     = errors.New("invalid log level")
	// ErrInvalidLength is returned when a buffer is shorter than the length
	// it is said to hold.
	ErrInvalidLength = errors.New("invalid buffer length")
)

// includePathError carries both the generic and the specific include path
// sentinel so either can be tested with errors.Is.
type includePathError struct {
	path string
	kind error
	err  error
}

func (e *includePathError) Error() string {
	if e.err != nil {
		return e.kind.Error() + ": " + e.path + ": " + e.err.Error()
	}
	return e.kind.Error() + ": " + e.path
}

func (e *includePathError) Unwrap() []error {
	out := []error{ErrIncludePath, e.kind}
	if e.err != nil {
		out = append(out, e.err)
	}
	return out
}
