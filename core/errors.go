package core

import "errors"

var (
	// ErrUnknownPredicate is returned when a named predicate has not been registered.
	ErrUnknownPredicate = errors.New("unknown predicate")
	// ErrInvalidIdentity is returned by ParseIdentity for malformed input.
	ErrInvalidIdentity = errors.New("invalid identity")
)

// ParseError reports a textual value that could not be parsed.
type ParseError struct {
	// Type is the logical name of the value being parsed (for example "coordinate").
	Type string
	// Value is the rejected input.
	Value string
	// Err is the underlying cause, if any.
	Err error
}

func (e *ParseError) Error() string {
	msg := "core: invalid " + e.Type + " value: " + e.Value
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
