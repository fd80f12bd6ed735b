package actions

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // e.g. "actions[2].exec"
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %s", e.Phase, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

func structuralError(err error) *ValidationError {
	return &ValidationError{Phase: "structural", Message: err.Error(), Severity: "error"}
}

func semanticError(path, msg string) *ValidationError {
	return &ValidationError{Phase: "semantic", Path: path, Message: msg, Severity: "error"}
}

func domainError(path, msg string) *ValidationError {
	return &ValidationError{Phase: "domain", Path: path, Message: msg, Severity: "error"}
}

func domainWarning(path, msg string) *ValidationError {
	return &ValidationError{Phase: "domain", Path: path, Message: msg, Severity: "warning"}
}

// Errors returns only the entries with error severity.
func Errors(all []*ValidationError) []*ValidationError {
	var out []*ValidationError
	for _, e := range all {
		if e.Severity == "error" {
			out = append(out, e)
		}
	}
	return out
}

var compiledSchema = sync.OnceValues(func() (*sjsonschema.Schema, error) {
	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return nil, err
	}
	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := sjsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	sch, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return sch, nil
})

// validateSemantic checks the raw decoded document against the reflected
// JSON Schema. Unknown fields are allowed.
func validateSemantic(raw map[string]any) []*ValidationError {
	sch, err := compiledSchema()
	if err != nil {
		return []*ValidationError{semanticError("", err.Error())}
	}

	// Round-trip through JSON so the validator sees JSON value types.
	data, err := json.Marshal(dropNulls(raw))
	if err != nil {
		return []*ValidationError{semanticError("", fmt.Sprintf("marshal for schema validation: %v", err))}
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return []*ValidationError{semanticError("", fmt.Sprintf("unmarshal document: %v", err))}
	}

	if err := sch.Validate(doc); err != nil {
		ve, ok := err.(*sjsonschema.ValidationError)
		if !ok {
			return []*ValidationError{semanticError("", err.Error())}
		}
		var errs []*ValidationError
		for _, cause := range flattenValidationErrors(ve) {
			errs = append(errs, semanticError(strings.Join(cause.InstanceLocation, "/"), fmt.Sprintf("%v", cause.ErrorKind)))
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// dropNulls removes keys with null values so that `generate:` with no body
// reads the same as an absent key.
func dropNulls(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if val == nil {
				continue
			}
			out[k] = dropNulls(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = dropNulls(val)
		}
		return out
	}
	return v
}

var knownEngines = map[string]bool{"": true, "mustache": true, "go": true}

// validateDomain performs the Go-level rules the schema cannot express.
func validateDomain(af *ActionsFile, raw map[string]any) []*ValidationError {
	var errs []*ValidationError

	if _, ok := raw["actions"]; !ok {
		errs = append(errs, domainError("actions", "missing top-level 'actions' list"))
	}

	if !knownEngines[af.Engine] {
		errs = append(errs, domainError("engine", fmt.Sprintf("unknown template engine %q, expected \"mustache\" or \"go\"", af.Engine)))
	}

	if c := af.Conditional; c != nil && c.ArtifactID == "" && c.Expression == "" {
		errs = append(errs, domainWarning("conditional", "conditional declares neither artifact-id nor expression"))
	}

	for i := range af.Actions {
		a := &af.Actions[i]
		path := fmt.Sprintf("actions[%d]", i)

		kinds := a.variants()
		switch {
		case len(kinds) == 0:
			errs = append(errs, domainWarning(path, "action declares no generate, inject, exec or vars block"))
		case len(kinds) > 1:
			names := make([]string, len(kinds))
			for j, k := range kinds {
				names[j] = string(k)
			}
			errs = append(errs, domainError(path, fmt.Sprintf("action declares more than one of %s; split them into separate entries", strings.Join(names, ", "))))
		}

		if a.Exec != nil {
			errs = append(errs, validateExec(path+".exec", a.Exec)...)
		}
		if a.Inject != nil && a.Inject.After != "" && a.Inject.Before != "" {
			errs = append(errs, domainError(path+".inject", "after and before are mutually exclusive"))
		}
		if a.Vars != nil {
			errs = append(errs, validateVars(path+".vars", a.Vars)...)
		}
	}
	return errs
}

func validateExec(path string, e *Exec) []*ValidationError {
	var errs []*ValidationError
	if e.Command != "" && e.CommandFile != "" {
		errs = append(errs, domainError(path, "command and command-file are mutually exclusive"))
	}
	if d := e.Define; d != nil {
		if d.JSONPath != "" && d.JQ != "" {
			errs = append(errs, domainError(path+".define", "json-path and jq are mutually exclusive"))
		}
		if expr, _ := d.Expression(); d.Name == "" || expr == "" {
			errs = append(errs, domainWarning(path+".define", "define needs both name and json-path (or jq); extraction will be skipped"))
		}
	}
	return errs
}

func validateVars(path string, v *Vars) []*ValidationError {
	var errs []*ValidationError
	seen := make(map[string]bool, len(v.Questions))
	for i, q := range v.Questions {
		qpath := fmt.Sprintf("%s.questions[%d]", path, i)
		if q.Name == "" {
			errs = append(errs, domainError(qpath, "question name is required"))
			continue
		}
		if seen[q.Name] {
			errs = append(errs, domainWarning(qpath, fmt.Sprintf("question %q is asked more than once", q.Name)))
		}
		seen[q.Name] = true

		switch q.Type {
		case "", QuestionInput, QuestionConfirm:
		case QuestionDropdown:
			if len(q.Options) == 0 {
				errs = append(errs, domainError(qpath, "dropdown question needs at least one option"))
			}
		default:
			errs = append(errs, domainError(qpath, fmt.Sprintf("unknown question type %q", q.Type)))
		}
	}
	return errs
}
