// Package templating renders action file templates against the variable
// model. Two engines are available: mustache (the default) and Go's
// text/template.
package templating

import (
	"fmt"
	"strings"

	"github.com/cbroglie/mustache"

	"github.com/ormasoftchile/scaf/pkg/model"
)

// Engine names accepted by New and by the action file `engine` field.
const (
	Mustache = "mustache"
	Go       = "go"
)

// Engine renders a template string against a model. Implementations are
// pure and render missing keys as the empty string.
type Engine interface {
	Process(text string, m model.Model) (string, error)
}

// New returns the engine registered under name. The empty name selects
// mustache.
func New(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", Mustache:
		return MustacheEngine{}, nil
	case Go:
		return GoEngine{}, nil
	default:
		return nil, fmt.Errorf("unknown template engine %q", name)
	}
}

// Names lists the available engines.
func Names() []string { return []string{Mustache, Go} }

// MustacheEngine renders with cbroglie/mustache. Output is not
// HTML-escaped.
type MustacheEngine struct{}

func (MustacheEngine) Process(text string, m model.Model) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tmpl, err := mustache.ParseStringRaw(text, true)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	out, err := tmpl.Render(map[string]any(m))
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}
