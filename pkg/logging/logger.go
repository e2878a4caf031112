package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Combine-Capital/cqtrace/pkg/config"
	"github.com/Combine-Capital/cqtrace/pkg/tracectx"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// Logger provides structured logging in the Cloud Logging format.
// It wraps zerolog.Logger; every event carries a severity field and the
// trace id visible where the event is written.
type Logger struct {
	zlog      zerolog.Logger
	cfg       config.LogConfig
	min       Severity
	sanitizer *Sanitizer
	closer    io.Closer
}

// Option configures a Logger.
type Option func(*options)

type options struct {
	observer *tracectx.Observer
	writer   io.Writer
}

// WithObserver reads trace ids from o instead of the default Observer.
func WithObserver(o *tracectx.Observer) Option {
	return func(opts *options) {
		opts.observer = o
	}
}

// WithWriter sends every line to w regardless of the configured output.
// Console formatting still applies.
func WithWriter(w io.Writer) Option {
	return func(opts *options) {
		opts.writer = w
	}
}

// New creates a new Logger instance from the provided configuration.
// It configures the minimum severity, output format (JSON/console), and output
// destination. When the output is stdout, ERROR and more severe lines go to
// stderr. A file output that cannot be opened falls back to stderr.
func New(cfg config.LogConfig, opts ...Option) *Logger {
	o := options{observer: tracectx.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	console := strings.ToLower(cfg.Format) == "console"

	var (
		w       io.Writer
		closer  io.Closer
		openErr error
	)
	switch output := strings.ToLower(cfg.Output); {
	case o.writer != nil:
		w = format(o.writer, console)
	case output == "stderr":
		w = format(os.Stderr, console)
	case output == "stdout" || output == "":
		w = severityWriter{
			out: format(os.Stdout, console),
			err: format(os.Stderr, console),
		}
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			openErr = err
			w = format(os.Stderr, console)
		} else {
			closer = f
			w = format(f, console)
		}
	}

	zlog := zerolog.New(w).
		Hook(NewTraceHook(o.observer)).
		With().Timestamp().Logger()

	l := &Logger{
		zlog:      zlog,
		cfg:       cfg,
		min:       ParseSeverity(cfg.Level),
		sanitizer: NewSanitizer(cfg),
		closer:    closer,
	}
	if openErr != nil {
		l.Warn().Err(openErr).Str("output", cfg.Output).Msg("cannot open log file, writing to stderr")
	}
	return l
}

func format(w io.Writer, console bool) io.Writer {
	if !console {
		return w
	}
	return newConsoleWriter(w)
}

// newConsoleWriter renders lines for humans with the severity in place of
// the zerolog level.
func newConsoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    color.NoColor,
		FormatPrepare: func(evt map[string]interface{}) error {
			if sev, ok := evt[SeverityField].(string); ok {
				evt[zerolog.LevelFieldName] = sev
				delete(evt, SeverityField)
			}
			return nil
		},
		FormatLevel: func(i interface{}) string {
			name, _ := i.(string)
			if name == "" {
				return ""
			}
			return ParseSeverity(name).colorize(strings.ToLower(name))
		},
	}
}

// severityWriter routes ERROR and more severe lines to err.
type severityWriter struct {
	out io.Writer
	err io.Writer
}

func (w severityWriter) Write(p []byte) (int, error) {
	return w.out.Write(p)
}

func (w severityWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level >= zerolog.ErrorLevel && level <= zerolog.PanicLevel {
		return w.err.Write(p)
	}
	return w.out.Write(p)
}

// WithLevel returns an event at sev, or nil when sev is below the minimum
// severity. A nil event is safe to use and writes nothing.
func (l *Logger) WithLevel(sev Severity) *zerolog.Event {
	if sev < l.min {
		return nil
	}
	return l.zlog.WithLevel(sev.Level()).Str(SeverityField, sev.String())
}

// Default returns a DEFAULT severity event.
func (l *Logger) Default() *zerolog.Event {
	return l.WithLevel(SeverityDefault)
}

// Debug returns a DEBUG severity event.
func (l *Logger) Debug() *zerolog.Event {
	return l.WithLevel(SeverityDebug)
}

// Info returns an INFO severity event.
func (l *Logger) Info() *zerolog.Event {
	return l.WithLevel(SeverityInfo)
}

// Notice returns a NOTICE severity event.
func (l *Logger) Notice() *zerolog.Event {
	return l.WithLevel(SeverityNotice)
}

// Warn returns a WARNING severity event.
func (l *Logger) Warn() *zerolog.Event {
	return l.WithLevel(SeverityWarning)
}

// Error returns an ERROR severity event.
func (l *Logger) Error() *zerolog.Event {
	return l.WithLevel(SeverityError)
}

// Critical returns a CRITICAL severity event.
func (l *Logger) Critical() *zerolog.Event {
	return l.WithLevel(SeverityCritical)
}

// Alert returns an ALERT severity event.
func (l *Logger) Alert() *zerolog.Event {
	return l.WithLevel(SeverityAlert)
}

// Emergency returns an EMERGENCY severity event. Unlike zerolog's Fatal it
// does not exit the process.
func (l *Logger) Emergency() *zerolog.Event {
	return l.WithLevel(SeverityEmergency)
}

// Log writes msg at sev with payload sanitised under the payload field.
// A nil payload writes no payload field.
func (l *Logger) Log(sev Severity, msg string, payload interface{}) {
	l.LogContext(context.Background(), sev, msg, payload)
}

// LogContext is Log with a context the trace id can be read from.
func (l *Logger) LogContext(ctx context.Context, sev Severity, msg string, payload interface{}) {
	e := l.WithLevel(sev)
	if e == nil {
		return
	}
	if payload != nil {
		e = e.RawJSON(Payload, l.sanitizer.Marshal(payload, sev))
	}
	e.Ctx(ctx).Msg(msg)
}

// ReportError logs err at ERROR with its message and a detailed rendering
// under fullError.
func (l *Logger) ReportError(err error) {
	l.ReportErrorContext(context.Background(), err)
}

// ReportErrorContext is ReportError with a context the trace id can be read from.
func (l *Logger) ReportErrorContext(ctx context.Context, err error) {
	if err == nil {
		return
	}
	l.LogContext(ctx, SeverityError, err.Error(), map[string]interface{}{
		FullError: fmt.Sprintf("%+v", err),
	})
}

// Sanitizer returns the payload sanitiser configured for this logger.
func (l *Logger) Sanitizer() *Sanitizer {
	return l.sanitizer
}

// With returns a logger context for adding fields to every event.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// WithComponent returns a new logger with a component field set.
// This is useful for identifying which package/component generated the log.
func (l *Logger) WithComponent(component string) *Logger {
	return l.derive(l.zlog.With().Str(Component, component).Logger())
}

// WithServiceName returns a new logger with the service name field set.
func (l *Logger) WithServiceName(serviceName string) *Logger {
	return l.derive(l.zlog.With().Str(ServiceName, serviceName).Logger())
}

// WithFields returns a new logger with multiple fields set.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return l.derive(ctx.Logger())
}

// WithContext returns a logger whose events read the trace id from ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	return l.derive(l.zlog.With().Ctx(ctx).Logger())
}

func (l *Logger) derive(zlog zerolog.Logger) *Logger {
	return &Logger{
		zlog:      zlog,
		cfg:       l.cfg,
		min:       l.min,
		sanitizer: l.sanitizer,
	}
}

// GetZerolog returns the underlying zerolog.Logger for advanced use cases.
// Events written through it carry no severity field.
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}

// Severity returns the minimum severity written.
func (l *Logger) Severity() Severity {
	return l.min
}

// SetSeverity changes the minimum severity written.
func (l *Logger) SetSeverity(sev Severity) {
	l.min = sev
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// since formats the elapsed time the way Cloud Logging displays latencies.
func since(start time.Time) (float64, string) {
	ms := float64(time.Since(start).Nanoseconds()) / 1e6
	return ms, fmt.Sprintf("%.3fms", ms)
}
