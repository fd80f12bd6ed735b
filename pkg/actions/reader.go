package actions

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// CommandFileName is reserved for command metadata and never read as an
// action file.
const CommandFileName = "command.yaml"

var extensions = map[string]bool{".yaml": true, ".yml": true}

// Recognized reports whether path names an action file by extension. The
// match is case-insensitive.
func Recognized(path string) bool {
	base := filepath.Base(path)
	if strings.EqualFold(base, CommandFileName) {
		return false
	}
	return extensions[strings.ToLower(filepath.Ext(base))]
}

// ColonHint is attached to a ParseError when the document looks like it
// is missing the colon after the actions header.
const ColonHint = "you may have forgotten a colon after the field 'actions'"

// ParseError reports a malformed action file.
type ParseError struct {
	Path string
	Hint string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("action file %s is malformed, %s: %v", e.Path, e.Hint, e.Err)
	}
	return fmt.Sprintf("could not parse action file %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Read parses the action file at path from the OS filesystem. The boolean
// is false when the extension is not recognized; that is not an error.
func Read(path string) (*ActionsFile, bool, error) {
	return ReadFs(afero.NewOsFs(), path)
}

// ReadFs is Read over an arbitrary filesystem.
func ReadFs(fsys afero.Fs, path string) (*ActionsFile, bool, error) {
	if !Recognized(path) {
		return nil, false, nil
	}
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, true, fmt.Errorf("read action file: %w", err)
	}
	af, err := Parse(path, data)
	if err != nil {
		return nil, true, err
	}
	return af, true, nil
}

// Parse decodes and validates an action file. Any error-severity finding
// yields a *ParseError naming path.
func Parse(path string, data []byte) (*ActionsFile, error) {
	af, findings := decode(data)
	errs := Errors(findings)
	if len(errs) == 0 {
		return af, nil
	}

	joined := make([]error, len(errs))
	hinted := false
	for i, e := range errs {
		joined[i] = e
		if e.Phase == "structural" || e.Path == "actions" {
			hinted = true
		}
	}
	pe := &ParseError{Path: path, Err: errors.Join(joined...)}
	if hinted && forgotColon(data) {
		pe.Hint = ColonHint
	}
	return nil, pe
}

// ValidateFile runs the full validation pipeline and returns every finding,
// warnings included. It backs `scaf action validate`.
func ValidateFile(fsys afero.Fs, path string) (*ActionsFile, []*ValidationError) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, []*ValidationError{structuralError(err)}
	}
	return decode(data)
}

// decode runs the three validation phases.
// Phase 1: Structural (YAML decode into the typed document)
// Phase 2: Semantic (JSON Schema over the raw document)
// Phase 3: Domain (Go rules)
func decode(data []byte) (*ActionsFile, []*ValidationError) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, []*ValidationError{structuralError(err)}
	}

	af := &ActionsFile{}
	raw := map[string]any{}
	if node.Kind != 0 {
		if err := node.Decode(af); err != nil {
			return nil, []*ValidationError{structuralError(err)}
		}
		if err := node.Decode(&raw); err != nil {
			return nil, []*ValidationError{structuralError(err)}
		}
	}

	var findings []*ValidationError
	findings = append(findings, validateSemantic(raw)...)
	findings = append(findings, validateDomain(af, raw)...)
	return af, findings
}

// forgotColon re-reads the raw text looking for a line that mentions
// "action" without the "actions:" header.
func forgotColon(data []byte) bool {
	if bytes.Contains(data, []byte("actions:")) {
		return false
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if strings.Contains(line, "action") && !strings.Contains(line, "actions:") {
			return true
		}
	}
	return false
}
