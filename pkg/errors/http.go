package errors

import (
	"net/http"
)

var httpStatus = map[Kind]int{
	KindValidation:   http.StatusBadRequest,
	KindInvalidInput: http.StatusBadRequest,
	KindNotFound:     http.StatusNotFound,
	KindUnauthorized: http.StatusUnauthorized,
	KindForbidden:    http.StatusForbidden,
	KindTemporary:    http.StatusServiceUnavailable,
	KindPermanent:    http.StatusInternalServerError,
	KindUnknown:      http.StatusInternalServerError,
}

// HTTPStatusCode returns the HTTP status code for err:
//   - ValidationError, InvalidInputError -> 400
//   - UnauthorizedError -> 401
//   - ForbiddenError -> 403
//   - NotFoundError -> 404
//   - TemporaryError -> 503
//   - PermanentError and unknown errors -> 500
func HTTPStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return httpStatus[Classify(err)]
}

// WriteHTTPError writes a plain-text error response with the status code
// derived from the error type. Messages of 5xx errors are not exposed.
func WriteHTTPError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	statusCode := HTTPStatusCode(err)
	msg := err.Error()
	if statusCode >= http.StatusInternalServerError {
		msg = http.StatusText(statusCode)
	}
	http.Error(w, msg, statusCode)
}
