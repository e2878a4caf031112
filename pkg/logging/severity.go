package logging

import (
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// Severity is a Google Cloud Logging severity. Higher values are more severe.
type Severity int

// Severities understood by Cloud Logging.
const (
	SeverityDefault   Severity = 0
	SeverityDebug     Severity = 100
	SeverityInfo      Severity = 200
	SeverityNotice    Severity = 300
	SeverityWarning   Severity = 400
	SeverityError     Severity = 500
	SeverityCritical  Severity = 600
	SeverityAlert     Severity = 700
	SeverityEmergency Severity = 800
)

var severityNames = map[Severity]string{
	SeverityDefault:   "DEFAULT",
	SeverityDebug:     "DEBUG",
	SeverityInfo:      "INFO",
	SeverityNotice:    "NOTICE",
	SeverityWarning:   "WARNING",
	SeverityError:     "ERROR",
	SeverityCritical:  "CRITICAL",
	SeverityAlert:     "ALERT",
	SeverityEmergency: "EMERGENCY",
}

var severityColors = map[Severity]*color.Color{
	SeverityDefault:   color.New(color.Bold),
	SeverityDebug:     color.New(color.FgBlue, color.Bold),
	SeverityInfo:      color.New(color.FgGreen, color.Bold),
	SeverityNotice:    color.New(color.FgHiYellow, color.Bold),
	SeverityWarning:   color.New(color.FgYellow, color.Bold),
	SeverityError:     color.New(color.FgHiRed, color.Bold),
	SeverityCritical:  color.New(color.FgRed, color.Bold),
	SeverityAlert:     color.New(color.FgRed, color.Bold, color.Underline),
	SeverityEmergency: color.New(color.BgRed, color.FgWhite, color.Bold),
}

// String returns the Cloud Logging name of the severity, e.g. "WARNING".
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return severityNames[SeverityDefault]
}

// ParseSeverity converts a severity name to a Severity. Matching is case
// insensitive and accepts the zerolog spellings "warn" and "fatal". Unknown
// names yield SeverityInfo.
func ParseSeverity(name string) Severity {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEFAULT":
		return SeverityDefault
	case "DEBUG", "TRACE":
		return SeverityDebug
	case "INFO":
		return SeverityInfo
	case "NOTICE":
		return SeverityNotice
	case "WARNING", "WARN":
		return SeverityWarning
	case "ERROR":
		return SeverityError
	case "CRITICAL", "FATAL":
		return SeverityCritical
	case "ALERT", "PANIC":
		return SeverityAlert
	case "EMERGENCY":
		return SeverityEmergency
	default:
		return SeverityInfo
	}
}

// Level maps the severity onto the closest zerolog level. zerolog levels only
// drive output routing and console colouring; the severity field is what
// Cloud Logging reads.
func (s Severity) Level() zerolog.Level {
	switch {
	case s >= SeverityError:
		return zerolog.ErrorLevel
	case s >= SeverityWarning:
		return zerolog.WarnLevel
	case s >= SeverityInfo:
		return zerolog.InfoLevel
	case s >= SeverityDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.NoLevel
	}
}

func (s Severity) colorize(text string) string {
	c, ok := severityColors[s]
	if !ok {
		return text
	}
	return c.Sprint(text)
}
