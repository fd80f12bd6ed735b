package mcpserver

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/afero"

	"github.com/ormasoftchile/scaf/pkg/actions"
	"github.com/ormasoftchile/scaf/pkg/command"
	"github.com/ormasoftchile/scaf/pkg/prompt"
	"github.com/ormasoftchile/scaf/pkg/terminal"
)

// Handlers serves the catalog-backed tools.
type Handlers struct {
	Catalog *command.Catalog
	Runner  *command.Runner
}

// HandleValidate implements the scaf_validate tool.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	af, errs := actions.ValidateFile(afero.NewOsFs(), path)
	if bad := actions.Errors(errs); len(bad) > 0 {
		return errorResult(formatErrors(bad)), nil
	}
	return textResult(fmt.Sprintf("✓ %s is valid (%d actions)", path, len(af.Actions))), nil
}

// HandleSchema implements the scaf_schema tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := actions.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleList implements the scaf_list tool.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var out bytes.Buffer
	command.List(&out, h.Catalog)
	return textResult(out.String()), nil
}

// HandleRun returns the handler of a subcommand tool. Notices produced by
// the run form the result text; prompts fall back to question defaults.
func (h *Handlers) HandleRun(sub *command.Subcommand) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		values := make(map[string]string)
		for k, v := range req.GetArguments() {
			values[k] = fmt.Sprint(v)
		}
		m, err := command.Values(sub.Options, values)
		if err != nil {
			return errorResult(err.Error()), nil
		}

		runner := *h.Runner
		runner.Prompter = prompt.Defaults{}
		rec := &terminal.Recorder{}
		if err := runner.Run(ctx, rec, sub, m); err != nil {
			rec.Notify(terminal.Error, err.Error())
			return errorResult(rec.String()), nil
		}
		if len(rec.Notices) == 0 {
			return textResult("done"), nil
		}
		return textResult(rec.String()), nil
	}
}

func formatErrors(errs []*actions.ValidationError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = fmt.Sprintf("[%s] %s", e.Phase, e.Message)
	}
	return strings.Join(msgs, "; ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
