// Package model defines the shared variable model threaded through an
// engine run and the populators that enrich it with project facts.
package model

import (
	"strings"
	"unicode"
)

// DependenciesKey is the model key holding the []Dependency facts
// contributed by populators.
const DependenciesKey = "dependencies"

// Model is the key/value context used for template rendering and action
// execution. It is passed by reference; keys are only ever added.
type Model map[string]any

// Dependency is a single resolved project dependency.
type Dependency struct {
	GroupID    string `json:"group-id,omitempty"`
	ArtifactID string `json:"artifact-id"`
	Version    string `json:"version,omitempty"`
	Source     string `json:"source"` // pom.xml, go.mod
}

// New returns an empty model.
func New() Model {
	return make(Model)
}

// PutIfAbsent stores v under key unless the key is already present.
// Reports whether the value was stored.
func (m Model) PutIfAbsent(key string, v any) bool {
	if _, ok := m[key]; ok {
		return false
	}
	m[key] = v
	return true
}

// Has reports whether key is present.
func (m Model) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Merge adds the entries of additions that are not already present.
// Dependency facts are appended rather than replaced.
func (m Model) Merge(additions Model) {
	for k, v := range additions {
		if k == DependenciesKey {
			if deps, ok := v.([]Dependency); ok {
				m.AddDependencies(deps...)
				continue
			}
		}
		m.PutIfAbsent(k, v)
	}
}

// AddDependencies appends dependency facts.
func (m Model) AddDependencies(deps ...Dependency) {
	existing := m.Dependencies()
	m[DependenciesKey] = append(existing, deps...)
}

// Dependencies returns the dependency facts, or nil when no populator
// contributed any.
func (m Model) Dependencies() []Dependency {
	deps, _ := m[DependenciesKey].([]Dependency)
	return deps
}

// HasDependencyFacts reports whether any populator contributed the
// dependency key, even with an empty list.
func (m Model) HasDependencyFacts() bool {
	_, ok := m[DependenciesKey].([]Dependency)
	return ok
}

// HasArtifact reports whether a dependency with the given artifact id is
// present. Comparison is case-insensitive and ignores surrounding space.
func (m Model) HasArtifact(artifactID string) bool {
	want := strings.TrimSpace(artifactID)
	for _, d := range m.Dependencies() {
		if strings.EqualFold(d.ArtifactID, want) {
			return true
		}
	}
	return false
}

// Clone returns a shallow copy.
func (m Model) Clone() Model {
	out := make(Model, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ToKebab converts camelCase and PascalCase names to kebab-case.
// An upper-case rune following a lower-case one starts a new word.
func ToKebab(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	wasLower := false
	for _, r := range s {
		if unicode.IsUpper(r) && wasLower {
			b.WriteByte('-')
		}
		wasLower = unicode.IsLower(r)
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
