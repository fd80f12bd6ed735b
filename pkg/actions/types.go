// Package actions defines the Go types for scaf action files and the reader
// that turns a YAML document into an ActionsFile.
package actions

// ActionsFile is one parsed action file: an optional run-wide conditional and
// an ordered list of actions. It is immutable once returned by the reader.
type ActionsFile struct {
	Engine      string       `yaml:"engine,omitempty"      json:"engine,omitempty"      jsonschema:"enum=mustache,enum=go"`
	Conditional *Conditional `yaml:"conditional,omitempty" json:"conditional,omitempty"`
	Actions     []Action     `yaml:"actions"               json:"actions"`
}

// Conditional is a prerequisite that must hold before any action runs.
type Conditional struct {
	ArtifactID string `yaml:"artifact-id,omitempty" json:"artifact-id,omitempty"`
	Expression string `yaml:"expression,omitempty"  json:"expression,omitempty"`
}

// Kind identifies which variant of an Action is populated.
type Kind string

const (
	KindNone     Kind = ""
	KindGenerate Kind = "generate"
	KindInject   Kind = "inject"
	KindExec     Kind = "exec"
	KindVars     Kind = "vars"
)

// Action is a tagged union. At most one variant is non-nil; the reader
// rejects documents that populate more than one.
type Action struct {
	Generate *Generate `yaml:"generate,omitempty" json:"generate,omitempty"`
	Inject   *Inject   `yaml:"inject,omitempty"   json:"inject,omitempty"`
	Exec     *Exec     `yaml:"exec,omitempty"     json:"exec,omitempty"`
	Vars     *Vars     `yaml:"vars,omitempty"     json:"vars,omitempty"`
}

// Kind returns the populated variant, or KindNone.
func (a *Action) Kind() Kind {
	switch {
	case a.Generate != nil:
		return KindGenerate
	case a.Inject != nil:
		return KindInject
	case a.Exec != nil:
		return KindExec
	case a.Vars != nil:
		return KindVars
	}
	return KindNone
}

func (a *Action) variants() []Kind {
	var ks []Kind
	if a.Generate != nil {
		ks = append(ks, KindGenerate)
	}
	if a.Inject != nil {
		ks = append(ks, KindInject)
	}
	if a.Exec != nil {
		ks = append(ks, KindExec)
	}
	if a.Vars != nil {
		ks = append(ks, KindVars)
	}
	return ks
}

// Generate creates a file from a template.
type Generate struct {
	To        string `yaml:"to,omitempty"        json:"to,omitempty"`
	Text      string `yaml:"text,omitempty"      json:"text,omitempty"`
	Overwrite bool   `yaml:"overwrite,omitempty" json:"overwrite,omitempty"`
}

// Insertion points for Inject.At.
const (
	AtStart = "start"
	AtEnd   = "end"
)

// Inject inserts a rendered fragment into an existing file.
type Inject struct {
	To     string `yaml:"to,omitempty"     json:"to,omitempty"`
	Text   string `yaml:"text,omitempty"   json:"text,omitempty"`
	At     string `yaml:"at,omitempty"     json:"at,omitempty"     jsonschema:"enum=start,enum=end"`
	After  string `yaml:"after,omitempty"  json:"after,omitempty"`
	Before string `yaml:"before,omitempty" json:"before,omitempty"`
	Skip   string `yaml:"skip,omitempty"   json:"skip,omitempty"`
	Create bool   `yaml:"create,omitempty" json:"create,omitempty"`
}

// Exec runs a shell command.
type Exec struct {
	Command     string  `yaml:"command,omitempty"      json:"command,omitempty"`
	CommandFile string  `yaml:"command-file,omitempty" json:"command-file,omitempty"`
	Dir         string  `yaml:"dir,omitempty"          json:"dir,omitempty"`
	To          string  `yaml:"to,omitempty"           json:"to,omitempty"`
	ErrTo       string  `yaml:"errto,omitempty"        json:"errto,omitempty"`
	Define      *Define `yaml:"define,omitempty"       json:"define,omitempty"`
}

// Define extracts a value from the command's JSON output into the model.
// Exactly one of JSONPath or JQ is expected.
type Define struct {
	Name     string `yaml:"name,omitempty"      json:"name,omitempty"`
	JSONPath string `yaml:"json-path,omitempty" json:"json-path,omitempty"`
	JQ       string `yaml:"jq,omitempty"        json:"jq,omitempty"`
}

// Expression returns the configured extraction expression and whether it is jq.
func (d *Define) Expression() (expr string, jq bool) {
	if d.JSONPath != "" {
		return d.JSONPath, false
	}
	return d.JQ, d.JQ != ""
}

// Vars asks for model values that are not already present.
type Vars struct {
	Questions []Question `yaml:"questions" json:"questions"`
}

// Question types.
const (
	QuestionInput    = "input"
	QuestionDropdown = "dropdown"
	QuestionConfirm  = "confirm"
)

// Question is a single prompt in a vars action.
type Question struct {
	Name    string   `yaml:"name"              json:"name"`
	Label   string   `yaml:"label,omitempty"   json:"label,omitempty"`
	Type    string   `yaml:"type,omitempty"    json:"type,omitempty"    jsonschema:"enum=input,enum=dropdown,enum=confirm"`
	Default string   `yaml:"default,omitempty" json:"default,omitempty"`
	Options []Option `yaml:"options,omitempty" json:"options,omitempty"`
}

// Option is a dropdown choice.
type Option struct {
	Value string `yaml:"value"           json:"value"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
}

// Prompt returns the label, falling back to the name.
func (q Question) Prompt() string {
	if q.Label != "" {
		return q.Label
	}
	return q.Name
}
