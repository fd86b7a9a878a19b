package templatefmt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"time"
)

// FuncMap returns shared alert script template helpers.
// Params: none.
// Returns: deterministic helper map used by config validation and runtime rendering.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"fmtDuration": FormatDuration,
		"json":        MarshalJSON,
	}
}

// ParseScriptTemplate parses one alert script template with shared helpers.
// Params: template name and body.
// Returns: compiled template or parse error.
func ParseScriptTemplate(name, body string) (*template.Template, error) {
	return template.New(name).Funcs(FuncMap()).Option("missingkey=error").Parse(body)
}

// FormatDuration renders duration in compact human form with one decimal precision.
// Params: template value as time.Duration, *time.Duration, or integer milliseconds.
// Returns: formatted duration string.
func FormatDuration(value any) string {
	var duration time.Duration
	switch typed := value.(type) {
	case time.Duration:
		duration = typed
	case *time.Duration:
		if typed == nil {
			return "0.0s"
		}
		duration = *typed
	case int:
		duration = time.Duration(typed) * time.Millisecond
	case int64:
		duration = time.Duration(typed) * time.Millisecond
	case float64:
		duration = time.Duration(typed * float64(time.Millisecond))
	default:
		return "0.0s"
	}

	if duration < 0 {
		duration = -duration
	}
	seconds := duration.Seconds()
	switch {
	case seconds >= 3600:
		return fmt.Sprintf("%.1fh", seconds/3600)
	case seconds >= 60:
		return fmt.Sprintf("%.1fm", seconds/60)
	default:
		return fmt.Sprintf("%.1fs", seconds)
	}
}

// MarshalJSON renders value into a JSON literal safe for script embedding.
// Params: template value of any type; json.RawMessage is validated and HTML-escaped as is.
// Returns: JS value or "null" on marshal failure.
func MarshalJSON(value any) template.JS {
	if raw, ok := value.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return "null"
		}
		var escaped bytes.Buffer
		json.HTMLEscape(&escaped, raw)
		return template.JS(escaped.String())
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return "null"
	}
	return template.JS(encoded)
}
