package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/scaf/pkg/actions"
	"github.com/ormasoftchile/scaf/pkg/command"
	"github.com/ormasoftchile/scaf/pkg/config"
	"github.com/ormasoftchile/scaf/pkg/logging"
	"github.com/ormasoftchile/scaf/pkg/prompt"
	"github.com/ormasoftchile/scaf/pkg/terminal"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// app holds what the dynamic commands and the shell share.
type app struct {
	fs      afero.Fs
	workDir string
	cfg     *config.Config
	sink    terminal.Sink
	catalog *command.Catalog
	runner  *command.Runner
}

var state *app

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sink := terminal.Stdout()
	if err := setup(sink); err != nil {
		sink.Notify(terminal.Error, err.Error())
		os.Exit(1)
	}
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var reported *command.ReportedError
		if !errors.As(err, &reported) {
			sink.Notify(terminal.Error, err.Error())
		}
		os.Exit(1)
	}
}

// setup loads configuration and registers the project's dynamic commands.
func setup(sink terminal.Sink) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("working directory: %w", err)
	}
	fsys := afero.NewOsFs()
	cfg, err := config.Load(fsys, wd)
	if err != nil {
		return err
	}
	initLogging(cfg.LogLevel)

	cat, err := command.Scan(fsys, wd)
	if err != nil {
		return err
	}
	state = &app{
		fs:      fsys,
		workDir: wd,
		cfg:     cfg,
		sink:    sink,
		catalog: cat,
		runner: &command.Runner{
			Fs:         fsys,
			WorkingDir: wd,
			Config:     cfg,
			Prompter:   prompt.New(),
		},
	}
	command.Register(rootCmd, cat, state.runner, sink)
	return nil
}

func initLogging(level string) {
	lc := logging.DefaultConfig()
	lc.Level = logging.ParseLevel(level)
	logging.Init(lc)
}

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "scaf",
	Short: "Project scaffolding from declarative action files",
	Long: `scaf runs user-defined commands stored under .scaf/commands. Each
subcommand directory holds YAML action files that generate files, inject
text, run shell commands and ask questions.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("log-level") {
			initLogging(logLevel)
		}
	},
}

// --- action ---

var actionCmd = &cobra.Command{
	Use:   "action",
	Short: "Work with action files",
}

var actionValidateCmd = &cobra.Command{
	Use:   "validate [file.yaml...]",
	Short: "Validate action files against the schema and domain rules",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runActionValidate,
}

func runActionValidate(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, path := range args {
		af, errs := actions.ValidateFile(state.fs, path)
		printValidationWarnings(errs)
		bad := actions.Errors(errs)
		if len(bad) > 0 {
			failed++
			fmt.Fprintf(os.Stderr, "%s: validation failed: %d error(s)\n\n", path, len(bad))
			for i, e := range bad {
				fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
				if e.Path != "" {
					fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
				}
			}
			if hint := colonHint(path); hint != "" {
				fmt.Fprintf(os.Stderr, "  hint: %s\n", hint)
			}
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid (%d actions)\n", path, len(af.Actions))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d action file(s) failed validation", failed, len(args))
	}
	return nil
}

// colonHint re-reads path through the parser to pick up its hint.
func colonHint(path string) string {
	_, _, err := actions.ReadFs(state.fs, path)
	var pe *actions.ParseError
	if errors.As(err, &pe) {
		return pe.Hint
	}
	return ""
}

// printValidationWarnings prints any warnings to stderr.
func printValidationWarnings(errs []*actions.ValidationError) {
	for _, e := range errs {
		if e.Severity == "warning" {
			fmt.Fprintf(os.Stderr, "  ⚠ [%s] %s\n", e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(os.Stderr, "    at: %s\n", e.Path)
			}
		}
	}
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "JSON Schema operations",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the action file JSON Schema to stdout",
	RunE:  runSchemaExport,
}

func runSchemaExport(cmd *cobra.Command, args []string) error {
	data, err := actions.GenerateJSONSchema()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	var out json.RawMessage = data
	formatted, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(formatted))
	return nil
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "scaf %s (build: %s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Diagnostic log level: debug, info, warn, error, off (overrides "+config.EnvLogLevel+")")

	actionCmd.AddCommand(actionValidateCmd)
	schemaCmd.AddCommand(schemaExportCmd)

	rootCmd.AddCommand(actionCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
}

// splitArgs is shared by commands that accept "command subcommand" in one
// argument.
func splitArgs(args []string) (string, string) {
	if len(args) == 1 && strings.Contains(args[0], "/") {
		c, s, _ := strings.Cut(args[0], "/")
		return c, s
	}
	if len(args) >= 2 {
		return args[0], args[1]
	}
	if len(args) == 1 {
		return args[0], ""
	}
	return "", ""
}
