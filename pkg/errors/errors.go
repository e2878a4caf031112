// Package errors is the error taxonomy shared by cqtrace services. Every
// category maps onto an HTTP status, a gRPC code and a GraphQL extensions.code,
// so handlers return typed errors and the transport layer reports them.
//
//	if err := pool.Ping(ctx); err != nil {
//	    return errors.NewTemporary("trace store unavailable", err)
//	}
//	if job == nil {
//	    return errors.NewNotFound("job", id)
//	}
package errors

import "fmt"

// chained carries the optional cause shared by every error type here.
type chained struct {
	cause error
}

func (c chained) Unwrap() error { return c.cause }

// suffix renders the cause as " (cause)" or nothing.
func (c chained) suffix() string {
	if c.cause == nil {
		return ""
	}
	return fmt.Sprintf(" (%v)", c.cause)
}

// PermanentError fails the same way on every attempt: bad configuration,
// a broken invariant, a malformed payload.
type PermanentError struct {
	chained
	msg string
}

// NewPermanent returns a PermanentError. cause may be nil.
func NewPermanent(msg string, cause error) error {
	return &PermanentError{chained{cause}, msg}
}

func (e *PermanentError) Error() string { return colon(e.msg, e.cause) }

// TemporaryError may succeed when retried: timeouts, exhausted pools, an
// unreachable exporter.
type TemporaryError struct {
	chained
	msg string
}

// NewTemporary returns a TemporaryError. cause may be nil.
func NewTemporary(msg string, cause error) error {
	return &TemporaryError{chained{cause}, msg}
}

func (e *TemporaryError) Error() string { return colon(e.msg, e.cause) }

func colon(msg string, cause error) string {
	if cause == nil {
		return msg
	}
	return msg + ": " + cause.Error()
}

// NotFoundError reports a missing resource by kind and id.
type NotFoundError struct {
	chained
	resource, id string
}

func NewNotFound(resource, id string) error {
	return &NotFoundError{resource: resource, id: id}
}

func NewNotFoundWithCause(resource, id string, cause error) error {
	return &NotFoundError{chained{cause}, resource, id}
}

func (e *NotFoundError) Error() string {
	return e.resource + " not found: " + e.id + e.suffix()
}

func (e *NotFoundError) Resource() string { return e.resource }
func (e *NotFoundError) ID() string       { return e.id }

// InvalidInputError rejects a single request field.
type InvalidInputError struct {
	chained
	field, msg string
}

func NewInvalidInput(field, msg string) error {
	return &InvalidInputError{field: field, msg: msg}
}

func NewInvalidInputWithCause(field, msg string, cause error) error {
	return &InvalidInputError{chained{cause}, field, msg}
}

func (e *InvalidInputError) Error() string {
	return "invalid input for " + e.field + ": " + e.msg + e.suffix()
}

func (e *InvalidInputError) Field() string   { return e.field }
func (e *InvalidInputError) Message() string { return e.msg }

// UnauthorizedError means the caller could not be identified.
type UnauthorizedError struct {
	chained
	msg string
}

func NewUnauthorized(msg string) error {
	return &UnauthorizedError{msg: msg}
}

func NewUnauthorizedWithCause(msg string, cause error) error {
	return &UnauthorizedError{chained{cause}, msg}
}

func (e *UnauthorizedError) Error() string {
	return "unauthorized: " + e.msg + e.suffix()
}

// ForbiddenError means the caller is known but may not perform action.
type ForbiddenError struct {
	chained
	action string
}

func NewForbidden(action string) error {
	return &ForbiddenError{action: action}
}

func NewForbiddenWithCause(action string, cause error) error {
	return &ForbiddenError{chained{cause}, action}
}

func (e *ForbiddenError) Error() string {
	return "forbidden: " + e.action + e.suffix()
}

func (e *ForbiddenError) Action() string { return e.action }
