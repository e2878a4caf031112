package graphql

import (
	"context"
	"net/http"
	"strings"

	cqerrors "github.com/Combine-Capital/cqtrace/pkg/errors"
	"github.com/Combine-Capital/cqtrace/pkg/logging"
	"github.com/Combine-Capital/cqtrace/pkg/tracectx"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// ErrorLogger starts tracing for GraphQL requests and logs the errors they
// produce.
type ErrorLogger struct {
	logger   *logging.Logger
	observer *tracectx.Observer
	header   string
}

// Option configures an ErrorLogger.
type Option func(*ErrorLogger)

// WithObserver uses o instead of the default Observer.
func WithObserver(o *tracectx.Observer) Option {
	return func(l *ErrorLogger) {
		if o != nil {
			l.observer = o
		}
	}
}

// WithHeader reads the trace id from name instead of tracectx.DefaultHeader.
func WithHeader(name string) Option {
	return func(l *ErrorLogger) {
		if name != "" {
			l.header = name
		}
	}
}

// NewErrorLogger creates an ErrorLogger writing to logger.
func NewErrorLogger(logger *logging.Logger, opts ...Option) *ErrorLogger {
	l := &ErrorLogger{
		logger:   logger,
		observer: tracectx.Default(),
		header:   tracectx.DefaultHeader,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RequestDidStart starts a trace on the calling node with the id from the
// request headers. Without a trace header it logs a warning and leaves the
// node untouched.
func (l *ErrorLogger) RequestDidStart(ctx context.Context, header http.Header) context.Context {
	id := header.Get(l.header)
	if id == "" {
		l.logger.Warn().Ctx(ctx).Msg("No trace id present - can't enable request tracing")
		return ctx
	}
	l.observer.Start(id)
	return tracectx.NewContext(ctx, id)
}

// DidEncounterErrors logs errs in one line. The line is an ERROR unless every
// error is a forbidden error, in which case it is a WARNING.
func (l *ErrorLogger) DidEncounterErrors(ctx context.Context, errs gqlerror.List) {
	if len(errs) == 0 {
		return
	}

	messages := make([]string, 0, len(errs))
	payload := make([]interface{}, 0, len(errs))
	for _, e := range errs {
		if e == nil {
			continue
		}
		messages = append(messages, e.Message)
		entry := map[string]interface{}{
			"message": e.Message,
		}
		if len(e.Path) > 0 {
			entry["path"] = e.Path.String()
		}
		if e.Extensions != nil {
			entry["extensions"] = e.Extensions
		}
		if e.Err != nil {
			entry["originalError"] = e.Err
		}
		payload = append(payload, entry)
	}

	l.logger.LogContext(ctx, severityFor(errs),
		"Encountered errors when processing GraphQL request: ["+strings.Join(messages, ", ")+"]",
		payload)
}

func severityFor(errs gqlerror.List) logging.Severity {
	for _, e := range errs {
		if e != nil && !isForbidden(e) {
			return logging.SeverityError
		}
	}
	return logging.SeverityWarning
}

func isForbidden(e *gqlerror.Error) bool {
	if e.Err != nil && cqerrors.IsForbidden(e.Err) {
		return true
	}
	code, _ := e.Extensions[extensionCode].(string)
	return code == cqerrors.CodeForbidden
}

// Middleware wraps a GraphQL HTTP handler so that each request runs in its
// own trace scope started by RequestDidStart.
func (l *ErrorLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope := l.observer.Enter()
		defer scope.Exit()
		ctx := l.RequestDidStart(r.Context(), r.Header)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
