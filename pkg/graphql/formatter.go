// Package graphql shapes and logs GraphQL errors. The formatter rewrites
// extensions.exception into the small set of client-facing exceptions, and the
// error logger starts request tracing and reports resolver errors with the
// request's trace id.
package graphql

import (
	"context"

	cqerrors "github.com/Combine-Capital/cqtrace/pkg/errors"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

const (
	extensionCode      = "code"
	extensionException = "exception"
	validationErrors   = "validationErrors"
)

// FormatterOptions limits which exception keys reach the client. WhiteList
// keeps only the listed keys; BlackList then removes the listed keys.
type FormatterOptions struct {
	WhiteList []string
	BlackList []string
}

// ErrorFormatter returns a function rewriting extensions.exception:
//   - validation errors become a 400 exception carrying validationErrors
//   - UNAUTHENTICATED becomes 401 "Authentication error"
//   - FORBIDDEN becomes 403 "Forbidden error"
//   - a missing exception or one without a code becomes 500 "Server error"
//
// Errors without extensions and without a typed cause are returned unchanged.
func ErrorFormatter(opts *FormatterOptions) func(*gqlerror.Error) *gqlerror.Error {
	return func(e *gqlerror.Error) *gqlerror.Error {
		if e == nil {
			return nil
		}
		classify(e)
		if e.Extensions == nil {
			return e
		}

		exception, _ := e.Extensions[extensionException].(map[string]interface{})
		switch code, _ := e.Extensions[extensionCode].(string); {
		case exception != nil && exception[validationErrors] != nil:
			exception = map[string]interface{}{
				"code":           400,
				"message":        "Validation error",
				validationErrors: exception[validationErrors],
			}
		case code == cqerrors.CodeUnauthenticated:
			exception = map[string]interface{}{"code": 401, "message": "Authentication error"}
		case code == cqerrors.CodeForbidden:
			exception = map[string]interface{}{"code": 403, "message": "Forbidden error"}
		case exception == nil || exception["code"] == nil:
			exception = map[string]interface{}{"code": 500, "message": "Server error"}
		}

		if opts != nil {
			if opts.WhiteList != nil {
				exception = pick(exception, opts.WhiteList)
			}
			if opts.BlackList != nil {
				exception = omit(exception, opts.BlackList)
			}
		}
		e.Extensions[extensionException] = exception
		return e
	}
}

// Presenter adapts ErrorFormatter to the error presenter signature used by
// GraphQL servers: any error is converted to a *gqlerror.Error first.
func Presenter(opts *FormatterOptions) func(context.Context, error) *gqlerror.Error {
	format := ErrorFormatter(opts)
	return func(_ context.Context, err error) *gqlerror.Error {
		return format(toGQLError(err))
	}
}

func toGQLError(err error) *gqlerror.Error {
	if err == nil {
		return nil
	}
	var gqlErr *gqlerror.Error
	if cqerrors.As(err, &gqlErr) {
		return gqlErr
	}
	return &gqlerror.Error{Err: err, Message: err.Error()}
}

// classify fills extensions from a typed cause: the code from its category
// and, for validation errors, the per-field messages.
func classify(e *gqlerror.Error) {
	if e.Err == nil {
		return
	}
	kind := cqerrors.Classify(e.Err)
	if kind == cqerrors.KindUnknown {
		return
	}
	if e.Extensions == nil {
		e.Extensions = make(map[string]interface{})
	}
	if _, ok := e.Extensions[extensionCode]; !ok {
		e.Extensions[extensionCode] = cqerrors.GraphQLCode(e.Err)
	}

	var verr *cqerrors.ValidationError
	if cqerrors.As(e.Err, &verr) {
		exception, _ := e.Extensions[extensionException].(map[string]interface{})
		if exception == nil {
			exception = make(map[string]interface{})
		}
		exception[validationErrors] = verr.Fields()
		e.Extensions[extensionException] = exception
	}
}

func pick(m map[string]interface{}, keys []string) map[string]interface{} {
	out := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	return out
}

func omit(m map[string]interface{}, keys []string) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}
