package errors

import (
	"fmt"
)

// Wrap adds msg to err while keeping its category: the result satisfies the
// same Is* predicate as err. Untyped errors become PermanentErrors.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}

	switch Classify(err) {
	case KindTemporary:
		return NewTemporary(msg, err)
	case KindNotFound:
		var nfe *NotFoundError
		As(err, &nfe)
		return NewNotFoundWithCause(nfe.resource, nfe.id, fmt.Errorf("%s: %w", msg, err))
	case KindInvalidInput:
		var iie *InvalidInputError
		As(err, &iie)
		return NewInvalidInputWithCause(iie.field, msg, err)
	case KindUnauthorized:
		return NewUnauthorizedWithCause(msg, err)
	case KindForbidden:
		return NewForbiddenWithCause(msg, err)
	case KindValidation:
		// The field map is the useful part; callers read it through As.
		return fmt.Errorf("%s: %w", msg, err)
	default:
		return NewPermanent(msg, err)
	}
}

// Wrapf wraps an error with a formatted message while preserving the original error type.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}
