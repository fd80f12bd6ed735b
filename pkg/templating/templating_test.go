package templating

import (
	"strings"
	"testing"

	"github.com/ormasoftchile/scaf/pkg/model"
)

func TestNew(t *testing.T) {
	for _, name := range []string{"", "mustache", "Go", " go "} {
		if _, err := New(name); err != nil {
			t.Errorf("New(%q): %v", name, err)
		}
	}
	if _, err := New("handlebars"); err == nil {
		t.Error("expected error for unknown engine")
	}
}

func TestMustacheProcess(t *testing.T) {
	m := model.Model{"name": "World", "package-name": "com.example", "html": "<b>"}
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "no templates here", "no templates here"},
		{"variable", "Hello {{name}}", "Hello World"},
		{"kebab key", "package {{package-name}};", "package com.example;"},
		{"missing key", "[{{absent}}]", "[]"},
		{"raw output", "{{html}}", "<b>"},
	}
	e := MustacheEngine{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Process(tt.in, m)
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if got != tt.want {
				t.Errorf("Process(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMustacheParseError(t *testing.T) {
	if _, err := (MustacheEngine{}).Process("{{#open}}never closed", model.New()); err == nil {
		t.Error("expected parse error for unclosed section")
	}
}

func TestGoProcess(t *testing.T) {
	m := model.Model{"name": "World", "package-name": "com.example.app"}
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"dot", "Hello {{.name}}", "Hello World"},
		{"get kebab", `{{get "package-name"}}`, "com.example.app"},
		{"missing key", "[{{.absent}}]", "[]"},
		{"missing get", `[{{get "absent"}}]`, "[]"},
		{"pascal", `{{pascal "order-service"}}`, "OrderService"},
		{"camel", `{{camel "OrderService"}}`, "orderService"},
		{"package dir", `{{packageDir (get "package-name")}}`, "com/example/app"},
		{"default", `{{default "x" .absent}}`, "x"},
	}
	e := GoEngine{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Process(tt.in, m)
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if got != tt.want {
				t.Errorf("Process(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGoKeepsLiteralNoValue(t *testing.T) {
	m := model.Model{"v": "<no value>", "items": []string{"a", "b"}}
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"model value", "v={{.v}}", "v=<no value>"},
		{"template text", "<no value> {{.absent}}.", "<no value> ."},
		{"missing in if", "{{if .absent}}yes{{else}}no{{end}}", "no"},
		{"missing in range", "{{range .items}}{{.}}{{$.absent}}{{end}}", "ab"},
	}
	e := GoEngine{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Process(tt.in, m)
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if got != tt.want {
				t.Errorf("Process(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGoParseError(t *testing.T) {
	_, err := (GoEngine{}).Process("{{if}}", model.New())
	if err == nil || !strings.Contains(err.Error(), "parse template") {
		t.Errorf("expected parse error, got %v", err)
	}
}
