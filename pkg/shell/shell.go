// Package shell implements the interactive scaf REPL. Each line is split
// with shell quoting rules and executed as a scaf command line.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"mvdan.cc/sh/v3/shell"

	"github.com/ormasoftchile/scaf/pkg/command"
)

// Shell runs scaf command lines against Root.
type Shell struct {
	Root   *cobra.Command
	Output io.Writer
	Prompt string
}

// New creates a shell for root writing to stdout.
func New(root *cobra.Command) *Shell {
	return &Shell{Root: root, Output: os.Stdout, Prompt: "scaf> "}
}

// Run starts the interactive REPL loop.
func (s *Shell) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.Prompt,
		AutoComplete:    Completer(s.Root),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(s.Output, "scaf shell. Type 'help' for commands, 'exit' to leave.\n\n")

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}
		quit, err := s.Execute(ctx, line)
		if err != nil {
			var reported *command.ReportedError
			if !errors.As(err, &reported) {
				fmt.Fprintf(s.Output, "Error: %v\n", err)
			}
		}
		if quit {
			return nil
		}
	}
}

// Execute runs one line. It reports quit for exit and quit.
func (s *Shell) Execute(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return false, nil
	}
	args, err := shell.Fields(line, nil)
	if err != nil {
		return false, fmt.Errorf("parse %q: %w", line, err)
	}
	if len(args) == 0 {
		return false, nil
	}
	if args[0] == s.Root.Name() {
		args = args[1:]
	}

	switch {
	case len(args) == 0:
		return false, nil
	case args[0] == "exit" || args[0] == "quit":
		return true, nil
	case args[0] == "shell":
		return false, errors.New("already in the scaf shell")
	}

	defer resetFlags(s.Root)
	s.Root.SetArgs(args)
	return false, s.Root.ExecuteContext(ctx)
}

// Completer builds tab completion from the command tree.
func Completer(root *cobra.Command) *readline.PrefixCompleter {
	completer := readline.NewPrefixCompleter(items(root)...)
	completer.Children = append(completer.Children, readline.PcItem("exit"))
	return completer
}

func items(cmd *cobra.Command) []readline.PrefixCompleterInterface {
	var out []readline.PrefixCompleterInterface
	for _, c := range cmd.Commands() {
		if c.Hidden || c.Name() == "shell" {
			continue
		}
		children := items(c)
		c.Flags().VisitAll(func(f *pflag.Flag) {
			children = append(children, readline.PcItem("--"+f.Name))
		})
		out = append(out, readline.PcItem(c.Name(), children...))
	}
	return out
}

// resetFlags restores every flag in the tree to its default so one line's
// flags do not leak into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if !f.Changed {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
