package command

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ormasoftchile/scaf/pkg/logging"
	"github.com/ormasoftchile/scaf/pkg/model"
	"github.com/ormasoftchile/scaf/pkg/terminal"
)

// GroupID is the help group dynamic commands are listed under.
const GroupID = "dynamic"

// ReportedError marks an error already shown to the user as a notice.
type ReportedError struct {
	Err error
}

func (e *ReportedError) Error() string { return e.Err.Error() }
func (e *ReportedError) Unwrap() error { return e.Err }

// Report shows err as one error notice and returns it wrapped in a
// *ReportedError so the caller exits non-zero without printing it again.
func Report(sink terminal.Sink, err error) error {
	if err == nil {
		return nil
	}
	var reported *ReportedError
	if errors.As(err, &reported) {
		return err
	}
	logging.Debug().Err(err).Msg("command failed")
	sink.Notify(terminal.Error, err.Error())
	return &ReportedError{Err: err}
}

// Register adds `<command> <subcommand>` for every catalog entry to root.
func Register(root *cobra.Command, cat *Catalog, r *Runner, sink terminal.Sink) {
	if len(cat.Commands) == 0 {
		return
	}
	if !root.ContainsGroup(GroupID) {
		root.AddGroup(&cobra.Group{ID: GroupID, Title: "Dynamic Commands:"})
	}
	for _, c := range cat.Commands {
		if existing, _, err := root.Find([]string{c.Name}); err == nil && existing != root {
			logging.Warn().Str("command", c.Name).Msg("dynamic command shadows a built-in command, skipping")
			continue
		}
		parent := newParent(c, sink)
		root.AddCommand(parent)
		for _, sub := range c.Subcommands {
			parent.AddCommand(newSubcommand(c.Name, sub, r, sink))
			logging.Debug().Str("command", c.Name).Str("subcommand", sub.Name).Msg("registered dynamic command")
		}
	}
}

func newParent(c *Command, sink terminal.Sink) *cobra.Command {
	names := make([]string, len(c.Subcommands))
	for i, s := range c.Subcommands {
		names[i] = s.Name
	}
	return &cobra.Command{
		Use:     c.Name,
		Short:   fmt.Sprintf("Run a %s subcommand", c.Name),
		GroupID: GroupID,
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return Report(sink, &UnknownError{
				Kind:        "subcommand",
				Parent:      c.Name,
				Name:        args[0],
				Suggestions: Suggest(args[0], names),
			})
		},
	}
}

func newSubcommand(command string, sub *Subcommand, r *Runner, sink terminal.Sink) *cobra.Command {
	short := sub.Description
	if short == "" {
		short = fmt.Sprintf("Run the %s %s action files", command, sub.Name)
	}
	cmd := &cobra.Command{
		Use:   sub.Name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := ModelFromFlags(cmd.Flags(), sub.Options)
			if err != nil {
				return Report(sink, err)
			}
			return Report(sink, r.Run(cmd.Context(), sink, sub, m))
		},
	}
	for _, o := range sub.Options {
		if o.Name == "" {
			logging.Warn().Str("subcommand", sub.Name).Msg("option name not provided, skipping")
			continue
		}
		if err := addFlag(cmd.Flags(), o); err != nil {
			logging.Warn().Err(err).Str("subcommand", sub.Name).Str("option", o.Name).Msg("invalid option, skipping")
			continue
		}
		if o.Required {
			_ = cmd.MarkFlagRequired(o.FlagName())
		}
	}
	return cmd
}

func addFlag(fs *pflag.FlagSet, o Option) error {
	name := o.FlagName()
	switch o.Type() {
	case TypeInt:
		def := 0
		if o.DefaultValue != "" {
			v, err := strconv.Atoi(o.DefaultValue)
			if err != nil {
				return fmt.Errorf("default-value %q is not an int", o.DefaultValue)
			}
			def = v
		}
		fs.Int(name, def, o.Description)
	case TypeBool:
		def := false
		if o.DefaultValue != "" {
			v, err := strconv.ParseBool(o.DefaultValue)
			if err != nil {
				return fmt.Errorf("default-value %q is not a bool", o.DefaultValue)
			}
			def = v
		}
		fs.Bool(name, def, o.Description)
	default:
		fs.String(name, o.DefaultValue, o.Description)
	}
	return nil
}

// ModelFromFlags builds the initial model from the options that were set
// on the command line or declare a default. Keys are the flag names.
func ModelFromFlags(fs *pflag.FlagSet, options []Option) (model.Model, error) {
	m := model.New()
	for _, o := range options {
		if o.Name == "" {
			continue
		}
		key := o.FlagName()
		f := fs.Lookup(key)
		if f == nil || (!f.Changed && o.DefaultValue == "") {
			continue
		}
		switch o.Type() {
		case TypeInt:
			v, err := fs.GetInt(key)
			if err != nil {
				return nil, err
			}
			m[key] = v
		case TypeBool:
			v, err := fs.GetBool(key)
			if err != nil {
				return nil, err
			}
			m[key] = v
		default:
			m[key] = f.Value.String()
		}
	}
	return m, nil
}

// Values builds a model from string values keyed by option or flag name,
// applying defaults. It serves callers without a flag set.
func Values(options []Option, values map[string]string) (model.Model, error) {
	fs := pflag.NewFlagSet("values", pflag.ContinueOnError)
	for _, o := range options {
		if o.Name == "" {
			continue
		}
		if err := addFlag(fs, o); err != nil {
			return nil, fmt.Errorf("option %s: %w", o.Name, err)
		}
	}
	for _, o := range options {
		v, ok := values[o.Name]
		if !ok {
			v, ok = values[o.FlagName()]
		}
		if !ok || o.Name == "" {
			if o.Required && o.Name != "" {
				return nil, fmt.Errorf("required option '%s' not set", o.FlagName())
			}
			continue
		}
		if err := fs.Set(o.FlagName(), v); err != nil {
			return nil, fmt.Errorf("option %s: %w", o.Name, err)
		}
	}
	return ModelFromFlags(fs, options)
}
