package execrunner

import (
	"errors"
	"fmt"

	"github.com/itchyny/gojq"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/sen"
)

var errNoResult = errors.New("expression matched nothing")

// extract parses output leniently (unquoted keys, comments and trailing
// commas are accepted) and evaluates expr against it. A definite JSONPath
// returns its value; an indefinite one returns a slice. jq returns a single
// output as-is and several outputs as a slice.
func extract(output []byte, expr string, jq bool) (any, error) {
	doc, err := sen.Parse(output)
	if err != nil {
		return nil, fmt.Errorf("parse command output as JSON: %w", err)
	}
	if jq {
		return extractJQ(doc, expr)
	}
	return extractJSONPath(doc, expr)
}

func extractJSONPath(doc any, expr string) (any, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("parse json-path %q: %w", expr, err)
	}
	results := x.Get(doc)
	switch {
	case len(results) == 0:
		return nil, errNoResult
	case x.Normal():
		return results[0], nil
	default:
		// Wildcards, descent, filters, unions and slices always yield a list.
		return results, nil
	}
}

func extractJQ(doc any, expr string) (any, error) {
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse jq %q: %w", expr, err)
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("compile jq %q: %w", expr, err)
	}

	var results []any
	iter := code.Run(doc)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				break
			}
			return nil, fmt.Errorf("evaluate jq %q: %w", expr, err)
		}
		results = append(results, v)
	}
	switch len(results) {
	case 0:
		return nil, errNoResult
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}
