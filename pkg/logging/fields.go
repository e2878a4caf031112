// Package logging provides structured logging with zerolog in the format Google Cloud
// Logging expects. Every line carries a Cloud Logging severity and, when the emitting
// code runs inside a traced request, the request's trace id.
//
// Example usage:
//
//	cfg := config.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//	logger := logging.New(cfg)
//	logger.Info().Str("user_id", "123").Msg("user logged in")
//	logger.Log(logging.SeverityNotice, "job published", map[string]interface{}{"jobId": 42})
package logging

// Standard field names for structured logging.
const (
	// TraceID is the field carrying the propagated trace context value.
	TraceID = "trace"

	// SpanID is the field name for the current OpenTelemetry span ID.
	SpanID = "span_id"

	// SeverityField carries the Cloud Logging severity name.
	SeverityField = "severity"

	// Payload is the field holding the sanitised payload passed to Log.
	Payload = "payload"

	// ServiceName is the field name for the service generating the log.
	ServiceName = "service_name"

	// Message is the field name for the log message.
	Message = "message"

	// Error is the field name for error information.
	Error = "error"

	// FullError holds the detailed rendering of an error passed to ReportError.
	FullError = "fullError"

	// Method is the field name for the RPC method.
	Method = "method"

	// Duration is the field name for operation duration.
	Duration = "duration_ms"

	// Component is the field name for the component/package generating the log.
	Component = "component"

	// HTTPRequest is the structured request field read by Cloud Logging.
	HTTPRequest = "httpRequest"
)
