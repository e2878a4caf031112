package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"unicode/utf8"

	"github.com/Combine-Capital/cqtrace/pkg/config"
)

const (
	filteredValue   = "[FILTERED]"
	truncatedSuffix = "...TRUNCATED"

	// maxErrorDepth bounds how far nested errors and containers are expanded
	// before the value is handed to encoding/json as-is.
	maxErrorDepth = 16
)

// Sanitizer turns arbitrary payload values into JSON that is safe to log:
// sensitive keys are filtered, long strings are truncated, errors keep their
// message and values that cannot be encoded never fail the log call.
type Sanitizer struct {
	exclude           map[string]struct{}
	maxLength         int
	maxLengthForError int
}

// NewSanitizer builds a Sanitizer from the payload settings in cfg.
func NewSanitizer(cfg config.LogConfig) *Sanitizer {
	keys := cfg.ExcludeKeys
	if keys == nil {
		keys = config.DefaultExcludeKeys
	}
	s := &Sanitizer{
		exclude:           make(map[string]struct{}, len(keys)),
		maxLength:         cfg.MaxFieldLength,
		maxLengthForError: cfg.MaxFieldLengthForError,
	}
	for _, k := range keys {
		s.exclude[k] = struct{}{}
	}
	return s
}

// Sanitize returns payload as a tree of JSON values with the rules applied.
// The string limit depends on sev: entries at WARNING and above use the
// error limit.
func (s *Sanitizer) Sanitize(payload interface{}, sev Severity) interface{} {
	limit := s.maxLength
	if sev >= SeverityWarning {
		limit = s.maxLengthForError
	}
	return s.walk(normalize(payload), "", limit)
}

// Marshal sanitises payload and encodes it as JSON.
func (s *Sanitizer) Marshal(payload interface{}, sev Severity) []byte {
	b, err := json.Marshal(s.Sanitize(payload, sev))
	if err != nil {
		// Sanitize only produces JSON-native values.
		b, _ = json.Marshal(fmt.Sprintf("[unserializable: %v]", err))
	}
	return b
}

func (s *Sanitizer) walk(v interface{}, key string, limit int) interface{} {
	if _, ok := s.exclude[key]; ok && key != "" {
		return filteredValue
	}
	switch x := v.(type) {
	case map[string]interface{}:
		for k, child := range x {
			x[k] = s.walk(child, k, limit)
		}
		return x
	case []interface{}:
		for i, child := range x {
			x[i] = s.walk(child, "", limit)
		}
		return x
	case string:
		return truncate(x, limit)
	default:
		return v
	}
}

// normalize converts v into generic JSON values. Errors become
// {message, type}; values encoding/json rejects (cycles, channels,
// functions) are replaced with a placeholder string.
func normalize(v interface{}) interface{} {
	v = expandErrors(v, 0)

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("[unserializable %T: %v]", v, err)
	}

	var out interface{}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return fmt.Sprintf("[unserializable %T: %v]", v, err)
	}
	return out
}

// expandErrors replaces error values inside common payload containers with
// their object form so they do not encode as {}.
func expandErrors(v interface{}, depth int) interface{} {
	if depth > maxErrorDepth {
		return v
	}
	switch x := v.(type) {
	case error:
		return errorObject(x, depth)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, child := range x {
			out[k] = expandErrors(child, depth+1)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, child := range x {
			out[i] = expandErrors(child, depth+1)
		}
		return out
	default:
		return expandTyped(reflect.ValueOf(v), depth)
	}
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// expandTyped handles typed maps and slices whose elements may hold errors,
// such as map[string]error or []error. Struct fields are left to the encoder.
func expandTyped(rv reflect.Value, depth int) interface{} {
	if !rv.IsValid() {
		return nil
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String || !mayHoldError(rv.Type().Elem()) {
			return rv.Interface()
		}
		out := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = expandErrors(iter.Value().Interface(), depth+1)
		}
		return out
	case reflect.Slice, reflect.Array:
		if !mayHoldError(rv.Type().Elem()) {
			return rv.Interface()
		}
		out := make([]interface{}, rv.Len())
		for i := range out {
			out[i] = expandErrors(rv.Index(i).Interface(), depth+1)
		}
		return out
	default:
		return rv.Interface()
	}
}

func mayHoldError(t reflect.Type) bool {
	return t.Kind() == reflect.Interface || t.Implements(errorType)
}

func errorObject(err error, depth int) map[string]interface{} {
	obj := map[string]interface{}{
		"message": err.Error(),
		"type":    fmt.Sprintf("%T", err),
	}
	if cause := errors.Unwrap(err); cause != nil && depth < maxErrorDepth {
		obj["cause"] = errorObject(cause, depth+1)
	}
	return obj
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncatedSuffix
}
