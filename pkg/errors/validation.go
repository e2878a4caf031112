package errors

import (
	"sort"
	"strings"
)

// ValidationError collects per-field messages for one request.
type ValidationError struct {
	fields map[string][]string
}

// NewValidation returns an empty collector; Err yields nil until Add is called.
func NewValidation() *ValidationError {
	return &ValidationError{fields: make(map[string][]string)}
}

func (e *ValidationError) Add(field, msg string) *ValidationError {
	e.fields[field] = append(e.fields[field], msg)
	return e
}

func (e *ValidationError) Err() error {
	if len(e.fields) == 0 {
		return nil
	}
	return e
}

// Fields returns a copy of the recorded messages.
func (e *ValidationError) Fields() map[string][]string {
	out := make(map[string][]string, len(e.fields))
	for k, v := range e.fields {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.fields))
	for name := range e.fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("validation failed: ")
	for i, name := range names {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(name + ": " + strings.Join(e.fields[name], ", "))
	}
	return b.String()
}
