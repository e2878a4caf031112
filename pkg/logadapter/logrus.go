package logadapter

import (
	"github.com/Combine-Capital/cqtrace/pkg/logging"
	"github.com/Combine-Capital/cqtrace/pkg/tracectx"
	"github.com/sirupsen/logrus"
)

// LogrusHook adds the trace and severity fields to logrus entries. The trace
// id comes from the entry's context when set with WithContext, otherwise from
// the execution node writing the entry.
type LogrusHook struct {
	observer *tracectx.Observer
}

// NewLogrusHook creates a hook reading from o, or from the default Observer
// when o is nil.
func NewLogrusHook(o *tracectx.Observer) *LogrusHook {
	if o == nil {
		o = tracectx.Default()
	}
	return &LogrusHook{observer: o}
}

// Levels implements logrus.Hook.
func (h *LogrusHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (h *LogrusHook) Fire(e *logrus.Entry) error {
	if _, ok := e.Data[logging.TraceID]; !ok {
		if id, ok := h.observer.FromContext(e.Context); ok {
			e.Data[logging.TraceID] = id
		}
	}
	e.Data[logging.SeverityField] = LogrusSeverity(e.Level).String()
	return nil
}

// LogrusSeverity maps a logrus level onto the Cloud Logging severity.
func LogrusSeverity(l logrus.Level) logging.Severity {
	switch l {
	case logrus.TraceLevel, logrus.DebugLevel:
		return logging.SeverityDebug
	case logrus.InfoLevel:
		return logging.SeverityInfo
	case logrus.WarnLevel:
		return logging.SeverityWarning
	case logrus.ErrorLevel:
		return logging.SeverityError
	case logrus.FatalLevel:
		return logging.SeverityEmergency
	case logrus.PanicLevel:
		return logging.SeverityAlert
	default:
		return logging.SeverityDefault
	}
}

// NewLogrus creates a JSON logrus logger with the hook installed and the
// message key renamed for Cloud Logging.
func NewLogrus(o *tracectx.Observer) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: logging.Message,
		},
	})
	l.AddHook(NewLogrusHook(o))
	return l
}
