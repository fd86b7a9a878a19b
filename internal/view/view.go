package view

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"sweetalert/internal/alert"
	"sweetalert/internal/session"
	"sweetalert/internal/templatefmt"
)

// DefaultScriptTemplate renders the pending alert as a SweetAlert2 call.
const DefaultScriptTemplate = `<script>Swal.fire({{ json .Config }});</script>`

// Pending is an alert flashed by the previous request.
// Params: raw JSON configuration and decoded option map.
// Returns: view model for script rendering.
type Pending struct {
	Config  json.RawMessage
	Options map[string]any
}

// Title returns the title option or empty string.
func (p Pending) Title() string {
	title, _ := p.Options[alert.KeyTitle].(string)
	return title
}

// Text returns the text option or empty string.
func (p Pending) Text() string {
	text, _ := p.Options[alert.KeyText].(string)
	return text
}

// Timer returns the autoclose delay in ms when set.
func (p Pending) Timer() (float64, bool) {
	timer, ok := p.Options[alert.KeyTimer].(float64)
	return timer, ok
}

// Lookup reads the alert flashed into s by the previous request.
// Params: request session.
// Returns: pending alert, presence flag, or decode error for malformed payloads.
func Lookup(s *session.Session) (Pending, bool, error) {
	var payload string
	if err := s.Decode(alert.PayloadKey, &payload); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Pending{}, false, nil
		}
		return Pending{}, false, err
	}

	var options map[string]any
	if err := json.Unmarshal([]byte(payload), &options); err != nil {
		return Pending{}, false, fmt.Errorf("decode %s: %w", alert.PayloadKey, err)
	}
	return Pending{Config: json.RawMessage(payload), Options: options}, true, nil
}

// KeepPending carries the alert flashed by the previous request over to the next one.
// Params: request session.
// Returns: number of kept flash keys.
func KeepPending(s *session.Session) int {
	var keys []string
	for _, key := range s.Keys() {
		if key == alert.Namespace || strings.HasPrefix(key, alert.Namespace+".") {
			keys = append(keys, key)
		}
	}
	s.Keep(keys...)
	return len(keys)
}

// Renderer renders pending alerts into HTML snippets.
type Renderer struct {
	script *template.Template
}

// NewRenderer compiles the script template.
// Params: template body; empty selects DefaultScriptTemplate.
// Returns: renderer or parse error.
func NewRenderer(body string) (*Renderer, error) {
	if body == "" {
		body = DefaultScriptTemplate
	}
	script, err := templatefmt.ParseScriptTemplate("alert-script", body)
	if err != nil {
		return nil, fmt.Errorf("parse alert script template: %w", err)
	}
	return &Renderer{script: script}, nil
}

// Script renders one pending alert.
// Params: pending alert.
// Returns: trusted HTML snippet or execute error.
func (r *Renderer) Script(pending Pending) (template.HTML, error) {
	var out bytes.Buffer
	if err := r.script.Execute(&out, pending); err != nil {
		return "", fmt.Errorf("render alert script: %w", err)
	}
	return template.HTML(out.String()), nil
}

// SessionScript renders the alert pending in s, if any.
// Params: request session.
// Returns: snippet (empty when nothing is pending) or error.
func (r *Renderer) SessionScript(s *session.Session) (template.HTML, error) {
	pending, ok, err := Lookup(s)
	if err != nil || !ok {
		return "", err
	}
	return r.Script(pending)
}
