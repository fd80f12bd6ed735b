package engine

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/ormasoftchile/scaf/pkg/actions"
	"github.com/ormasoftchile/scaf/pkg/model"
)

// checkConditional returns a *ConditionalNotSatisfiedError when c does not
// hold. A declared artifact is unmet when no populator contributed
// dependency facts at all.
func checkConditional(path string, c *actions.Conditional, m model.Model) error {
	if c == nil {
		return nil
	}
	if id := strings.TrimSpace(c.ArtifactID); id != "" {
		if !m.HasDependencyFacts() || !m.HasArtifact(id) {
			return &ConditionalNotSatisfiedError{Path: path, ArtifactID: id}
		}
	}
	if c.Expression != "" {
		ok, err := evalCondition(c.Expression, m)
		if err != nil {
			return fmt.Errorf("conditional in %s: %w", path, err)
		}
		if !ok {
			return &ConditionalNotSatisfiedError{Path: path, Expression: c.Expression}
		}
	}
	return nil
}

// evalCondition evaluates a boolean expr-lang expression against the model.
// Kebab-case keys are reachable through get("package-name"); unknown
// identifiers evaluate to nil.
func evalCondition(exprStr string, m model.Model) (bool, error) {
	exprStr = strings.TrimSpace(exprStr)
	if exprStr == "" {
		return true, nil
	}

	env := map[string]any(m)
	program, err := expr.Compile(exprStr,
		expr.Env(env),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
		expr.Function("hasArtifact", func(params ...any) (any, error) {
			return m.HasArtifact(fmt.Sprint(params[0])), nil
		}, new(func(string) bool)),
		expr.Function("get", func(params ...any) (any, error) {
			return m[fmt.Sprint(params[0])], nil
		}, new(func(string) any)),
	)
	if err != nil {
		return false, fmt.Errorf("compile condition %q: %w", exprStr, err)
	}
	output, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("eval condition %q: %w", exprStr, err)
	}
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not return bool (got %T: %v)", exprStr, output, output)
	}
	return result, nil
}
