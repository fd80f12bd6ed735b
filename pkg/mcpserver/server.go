// Package mcpserver exposes scaf over the Model Context Protocol. Every
// dynamic subcommand becomes a tool named <command>_<subcommand>.
package mcpserver

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ormasoftchile/scaf/pkg/command"
)

// NewServer creates an MCP server with the scaf tools and one tool per
// subcommand in cat.
func NewServer(version string, cat *command.Catalog, runner *command.Runner) *server.MCPServer {
	s := server.NewMCPServer(
		"scaf",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("scaf_validate",
			mcp.WithDescription("Validate a scaf action file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the action file YAML")),
		),
		HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("scaf_schema",
			mcp.WithDescription("Export the action file JSON Schema"),
		),
		HandleSchema,
	)

	h := &Handlers{Catalog: cat, Runner: runner}
	s.AddTool(
		mcp.NewTool("scaf_list",
			mcp.WithDescription("List the project's dynamic commands"),
		),
		h.HandleList,
	)

	for _, c := range cat.Commands {
		for _, sub := range c.Subcommands {
			s.AddTool(SubcommandTool(c.Name, sub), h.HandleRun(sub))
		}
	}
	return s
}

// ToolName is the MCP tool name of a subcommand.
func ToolName(command, subcommand string) string {
	return command + "_" + subcommand
}

// SubcommandTool describes sub as a tool with one string argument per
// named option.
func SubcommandTool(cmd string, sub *command.Subcommand) mcp.Tool {
	desc := sub.Description
	if desc == "" {
		desc = fmt.Sprintf("Run scaf %s %s", cmd, sub.Name)
	}
	opts := []mcp.ToolOption{mcp.WithDescription(desc)}
	for _, o := range sub.Options {
		if o.Name == "" {
			continue
		}
		popts := []mcp.PropertyOption{mcp.Description(optionDescription(o))}
		if o.Required {
			popts = append(popts, mcp.Required())
		}
		opts = append(opts, mcp.WithString(o.FlagName(), popts...))
	}
	return mcp.NewTool(ToolName(cmd, sub.Name), opts...)
}

func optionDescription(o command.Option) string {
	d := o.Description
	if o.Type() != command.TypeString {
		d = fmt.Sprintf("%s (%s)", d, o.Type())
	}
	if o.DefaultValue != "" {
		d = fmt.Sprintf("%s [default %s]", d, o.DefaultValue)
	}
	return d
}
