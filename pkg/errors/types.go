package errors

import (
	"errors"
)

// As, Is and New forward to the standard library so callers need one import.
func As(err error, target interface{}) bool { return errors.As(err, target) }
func Is(err, target error) bool             { return errors.Is(err, target) }
func New(text string) error                 { return errors.New(text) }

// Kind is the category of an error.
type Kind int

// Error categories, from most to least specific. Classify reports the first
// category found in an error chain in this order.
const (
	KindUnknown Kind = iota
	KindValidation
	KindInvalidInput
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindTemporary
	KindPermanent
)

var kindNames = [...]string{
	KindUnknown:      "unknown",
	KindValidation:   "validation",
	KindInvalidInput: "invalid_input",
	KindNotFound:     "not_found",
	KindUnauthorized: "unauthorized",
	KindForbidden:    "forbidden",
	KindTemporary:    "temporary",
	KindPermanent:    "permanent",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[KindUnknown]
}

// Classify returns the category of err. Nil and untyped errors are KindUnknown.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case IsValidation(err):
		return KindValidation
	case IsInvalidInput(err):
		return KindInvalidInput
	case IsNotFound(err):
		return KindNotFound
	case IsUnauthorized(err):
		return KindUnauthorized
	case IsForbidden(err):
		return KindForbidden
	case IsTemporary(err):
		return KindTemporary
	case IsPermanent(err):
		return KindPermanent
	default:
		return KindUnknown
	}
}

func is[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

// IsPermanent reports whether err is or wraps a *PermanentError.
func IsPermanent(err error) bool { return is[*PermanentError](err) }

// IsTemporary reports whether err is or wraps a *TemporaryError.
func IsTemporary(err error) bool { return is[*TemporaryError](err) }

func IsNotFound(err error) bool     { return is[*NotFoundError](err) }
func IsInvalidInput(err error) bool { return is[*InvalidInputError](err) }
func IsUnauthorized(err error) bool { return is[*UnauthorizedError](err) }
func IsForbidden(err error) bool    { return is[*ForbiddenError](err) }
func IsValidation(err error) bool   { return is[*ValidationError](err) }
