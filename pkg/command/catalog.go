// Package command discovers user-defined commands under .scaf/commands and
// exposes them as CLI commands.
package command

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/scaf/pkg/actions"
	"github.com/ormasoftchile/scaf/pkg/logging"
	"github.com/ormasoftchile/scaf/pkg/model"
)

// Dir is the commands directory relative to the project root.
var Dir = filepath.Join(".scaf", "commands")

// ReadmeFileName documents a subcommand for `scaf command describe`.
const ReadmeFileName = "README.md"

// Data types accepted for options.
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeBool   = "bool"
)

// Option is one flag of a subcommand.
type Option struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description,omitempty"`
	DataType     string `yaml:"data-type,omitempty"`
	DefaultValue string `yaml:"default-value,omitempty"`
	Required     bool   `yaml:"required,omitempty"`
}

// FlagName is the kebab-cased option name. It is also the model key.
func (o Option) FlagName() string { return model.ToKebab(o.Name) }

// Type returns the normalized data type; anything unrecognized is a string.
func (o Option) Type() string {
	switch strings.ToLower(strings.TrimSpace(o.DataType)) {
	case "int", "integer":
		return TypeInt
	case "bool", "boolean":
		return TypeBool
	}
	return TypeString
}

// metadata is the layout of command.yaml.
type metadata struct {
	Command struct {
		Description string   `yaml:"description"`
		Options     []Option `yaml:"options"`
	} `yaml:"command"`
}

// Subcommand is a directory of action files under a command.
type Subcommand struct {
	Name        string
	Dir         string
	Description string
	Options     []Option
}

// Command groups subcommands.
type Command struct {
	Name        string
	Subcommands []*Subcommand
}

// Catalog is the result of scanning a commands directory.
type Catalog struct {
	Root     string
	Commands []*Command
}

// Scan reads <projectDir>/.scaf/commands. A missing directory yields an
// empty catalog. Commands and subcommands are sorted by name.
func Scan(fsys afero.Fs, projectDir string) (*Catalog, error) {
	root := filepath.Join(projectDir, Dir)
	cat := &Catalog{Root: root}

	cmdDirs, err := afero.ReadDir(fsys, root)
	if errors.Is(err, fs.ErrNotExist) {
		return cat, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan commands: %w", err)
	}

	for _, ci := range cmdDirs {
		if !ci.IsDir() || strings.HasPrefix(ci.Name(), ".") {
			continue
		}
		cmd := &Command{Name: ci.Name()}
		subDirs, err := afero.ReadDir(fsys, filepath.Join(root, ci.Name()))
		if err != nil {
			return nil, fmt.Errorf("scan command %s: %w", ci.Name(), err)
		}
		for _, si := range subDirs {
			if !si.IsDir() || strings.HasPrefix(si.Name(), ".") {
				continue
			}
			sub, err := readSubcommand(fsys, filepath.Join(root, ci.Name(), si.Name()))
			if err != nil {
				return nil, err
			}
			cmd.Subcommands = append(cmd.Subcommands, sub)
		}
		if len(cmd.Subcommands) == 0 {
			logging.Debug().Str("command", cmd.Name).Msg("command has no subcommands, ignoring")
			continue
		}
		sort.Slice(cmd.Subcommands, func(i, j int) bool { return cmd.Subcommands[i].Name < cmd.Subcommands[j].Name })
		cat.Commands = append(cat.Commands, cmd)
	}
	sort.Slice(cat.Commands, func(i, j int) bool { return cat.Commands[i].Name < cat.Commands[j].Name })
	return cat, nil
}

func readSubcommand(fsys afero.Fs, dir string) (*Subcommand, error) {
	sub := &Subcommand{Name: filepath.Base(dir), Dir: dir}
	path := filepath.Join(dir, actions.CommandFileName)
	data, err := afero.ReadFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return sub, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var md metadata
	if err := yaml.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	sub.Description = strings.TrimSpace(md.Command.Description)
	sub.Options = md.Command.Options
	return sub, nil
}

// Lookup returns the named command, or nil.
func (c *Catalog) Lookup(name string) *Command {
	for _, cmd := range c.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	return nil
}

// Subcommand returns the named subcommand, or nil.
func (c *Command) Subcommand(name string) *Subcommand {
	for _, s := range c.Subcommands {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Find resolves command and subcommand names. The error suggests close
// matches when either is unknown.
func (c *Catalog) Find(command, subcommand string) (*Subcommand, error) {
	cmd := c.Lookup(command)
	if cmd == nil {
		names := make([]string, len(c.Commands))
		for i, x := range c.Commands {
			names[i] = x.Name
		}
		return nil, &UnknownError{Kind: "command", Name: command, Suggestions: Suggest(command, names)}
	}
	sub := cmd.Subcommand(subcommand)
	if sub == nil {
		names := make([]string, len(cmd.Subcommands))
		for i, x := range cmd.Subcommands {
			names[i] = x.Name
		}
		return nil, &UnknownError{Kind: "subcommand", Parent: command, Name: subcommand, Suggestions: Suggest(subcommand, names)}
	}
	return sub, nil
}

// UnknownError reports a command or subcommand that does not exist.
type UnknownError struct {
	Kind        string
	Parent      string
	Name        string
	Suggestions []string
}

func (e *UnknownError) Error() string {
	var b strings.Builder
	if e.Parent != "" {
		fmt.Fprintf(&b, "unknown %s %q for %q", e.Kind, e.Name, e.Parent)
	} else {
		fmt.Fprintf(&b, "unknown %s %q", e.Kind, e.Name)
	}
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, ". Did you mean %s?", strings.Join(e.Suggestions, " or "))
	}
	return b.String()
}

// maxSuggestDistance bounds how far a suggestion may be from the input.
const maxSuggestDistance = 2

// Suggest returns candidates within a small edit distance of name, or
// sharing its prefix, closest first.
func Suggest(name string, candidates []string) []string {
	type scored struct {
		name string
		dist int
	}
	var hits []scored
	lower := strings.ToLower(name)
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(lower, strings.ToLower(c))
		if d <= maxSuggestDistance || (lower != "" && strings.HasPrefix(strings.ToLower(c), lower)) {
			hits = append(hits, scored{c, d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.name
	}
	return out
}
