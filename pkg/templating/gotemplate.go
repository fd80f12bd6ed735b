package templating

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"text/template/parse"
	"unicode"

	"github.com/ormasoftchile/scaf/pkg/model"
)

// GoEngine renders with text/template. Model keys are usually kebab-case,
// which the dot syntax cannot address; use `get "package-name"` for those.
type GoEngine struct{}

func (GoEngine) Process(text string, m model.Model) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	funcs := template.FuncMap{
		// get looks up a key that is not a valid Go identifier.
		"get": func(key string) any {
			if v, ok := m[key]; ok {
				return v
			}
			return ""
		},
	}
	for k, v := range scaffoldFuncMap {
		funcs[k] = v
	}

	tmpl, err := template.New("action").Funcs(funcs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, withBlanks(tmpl, m)); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

// withBlanks copies m and adds an empty string for every top-level key the
// template references but the model lacks, so absent keys render as empty.
func withBlanks(tmpl *template.Template, m model.Model) map[string]any {
	refs := map[string]bool{}
	for _, t := range tmpl.Templates() {
		if t.Tree != nil {
			collectRefs(t.Tree.Root, refs)
		}
	}
	data := make(map[string]any, len(m)+len(refs))
	for k, v := range m {
		data[k] = v
	}
	for k := range refs {
		if _, ok := data[k]; !ok {
			data[k] = ""
		}
	}
	return data
}

func collectRefs(node parse.Node, refs map[string]bool) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, c := range n.Nodes {
			collectRefs(c, refs)
		}
	case *parse.ActionNode:
		collectRefs(n.Pipe, refs)
	case *parse.PipeNode:
		if n == nil {
			return
		}
		for _, c := range n.Cmds {
			collectRefs(c, refs)
		}
	case *parse.CommandNode:
		for _, a := range n.Args {
			collectRefs(a, refs)
		}
	case *parse.IfNode:
		collectBranch(&n.BranchNode, refs)
	case *parse.RangeNode:
		collectBranch(&n.BranchNode, refs)
	case *parse.WithNode:
		collectBranch(&n.BranchNode, refs)
	case *parse.TemplateNode:
		collectRefs(n.Pipe, refs)
	case *parse.FieldNode:
		if len(n.Ident) == 1 {
			refs[n.Ident[0]] = true
		}
	case *parse.VariableNode:
		if len(n.Ident) == 2 && n.Ident[0] == "$" {
			refs[n.Ident[1]] = true
		}
	}
}

func collectBranch(b *parse.BranchNode, refs map[string]bool) {
	collectRefs(b.Pipe, refs)
	collectRefs(b.List, refs)
	collectRefs(b.ElseList, refs)
}

// scaffoldFuncMap supplements the built-in template functions with the
// string helpers scaffolding templates need.
var scaffoldFuncMap = template.FuncMap{
	"hasPrefix":  strings.HasPrefix,
	"hasSuffix":  strings.HasSuffix,
	"contains":   strings.Contains,
	"lower":      strings.ToLower,
	"upper":      strings.ToUpper,
	"split":      strings.Split,
	"join":       strings.Join,
	"replace":    strings.ReplaceAll,
	"trimPrefix": strings.TrimPrefix,
	"trimSuffix": strings.TrimSuffix,
	"kebab":      model.ToKebab,
	"camel":      toCamel,
	"pascal":     toPascal,
	// packageDir turns a dotted package name into a path.
	"packageDir": func(pkg string) string { return strings.ReplaceAll(pkg, ".", "/") },
	"default": func(def, val any) any {
		if val == nil || fmt.Sprint(val) == "" {
			return def
		}
		return val
	},
}

func words(s string) []string {
	return strings.FieldsFunc(model.ToKebab(s), func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '.'
	})
}

func toPascal(s string) string {
	var b strings.Builder
	for _, w := range words(s) {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

func toCamel(s string) string {
	p := []rune(toPascal(s))
	if len(p) == 0 {
		return ""
	}
	p[0] = unicode.ToLower(p[0])
	return string(p)
}
