package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ormasoftchile/scaf/pkg/command"
	"github.com/ormasoftchile/scaf/pkg/mcpserver"
	"github.com/ormasoftchile/scaf/pkg/prompt"
	"github.com/ormasoftchile/scaf/pkg/shell"
	"github.com/ormasoftchile/scaf/pkg/terminal"
)

// --- command ---

var commandCmd = &cobra.Command{
	Use:   "command",
	Short: "Manage the project's dynamic commands",
}

var commandNewCmd = &cobra.Command{
	Use:   "new [command] [subcommand]",
	Short: "Scaffold a hello world command under .scaf/commands",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, sub := splitArgs(args)
		dir, err := command.Create(state.fs, state.workDir, name, sub)
		if err != nil {
			return err
		}
		if sub == "" {
			sub = command.DefaultSubcommand
		}
		state.sink.Notify(terminal.Success, fmt.Sprintf("Created %s", dir))
		state.sink.Notify(terminal.Info, fmt.Sprintf("Run it with: scaf %s %s", name, sub))
		return nil
	},
}

var commandListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the project's dynamic commands",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		command.List(cmd.OutOrStdout(), state.catalog)
	},
}

var commandDescribeCmd = &cobra.Command{
	Use:   "describe [command] [subcommand]",
	Short: "Show a command's README or option summary",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, sub := splitArgs(args)
		if sub == "" {
			c := state.catalog.Lookup(name)
			if c == nil || len(c.Subcommands) != 1 {
				return fmt.Errorf("describe needs a subcommand for %q", name)
			}
			sub = c.Subcommands[0].Name
		}
		return command.Describe(cmd.OutOrStdout(), state.fs, state.catalog, name, sub, termWidth())
	},
}

func termWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		return w - 4
	}
	return 80
}

// --- shell ---

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive scaf shell",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return shell.New(rootCmd).Run(cmd.Context())
	},
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the project's commands as MCP tools over stdio",
	Long: `Start a Model Context Protocol server on stdin/stdout. Every dynamic
subcommand is exposed as a tool named <command>_<subcommand>; prompts use
question defaults.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner := *state.runner
		runner.Prompter = prompt.Defaults{}
		s := mcpserver.NewServer(version, state.catalog, &runner)
		return server.ServeStdio(s)
	},
}

func init() {
	commandCmd.AddCommand(commandNewCmd)
	commandCmd.AddCommand(commandListCmd)
	commandCmd.AddCommand(commandDescribeCmd)

	rootCmd.AddCommand(commandCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(mcpCmd)
}
