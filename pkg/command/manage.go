package command

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/ormasoftchile/scaf/pkg/actions"
	"github.com/ormasoftchile/scaf/pkg/terminal"
)

// DefaultSubcommand is used by Create when no subcommand name is given.
const DefaultSubcommand = "new"

const helloCommand = `command:
  description: Generate a hello world file
  options:
    - name: greeting
      description: who to greet
      data-type: string
      default-value: World
`

const helloActions = `actions:
  - exec:
      command: >-
        echo '{"greeting": "{{greeting}}"}'
      define:
        name: shout
        jq: .greeting | ascii_upcase
  - generate:
      to: hello.txt
      text: Hello {{greeting}}! ({{shout}})
`

const helloReadme = `# %s %s

Generates ` + "`hello.txt`" + ` in the current directory.

| option | default |
|---|---|
| --greeting | World |
`

// ExistsError is returned by Create when the subcommand directory exists.
type ExistsError struct {
	Dir string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("command directory %s already exists", e.Dir)
}

// Create scaffolds a hello world subcommand under projectDir and returns
// its directory.
func Create(fsys afero.Fs, projectDir, command, subcommand string) (string, error) {
	if err := validName(command); err != nil {
		return "", err
	}
	if subcommand == "" {
		subcommand = DefaultSubcommand
	}
	if err := validName(subcommand); err != nil {
		return "", err
	}

	dir := filepath.Join(projectDir, Dir, command, subcommand)
	if _, err := fsys.Stat(dir); err == nil {
		return "", &ExistsError{Dir: dir}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	files := map[string]string{
		actions.CommandFileName: helloCommand,
		"hello.yaml":            helloActions,
		ReadmeFileName:          fmt.Sprintf(helloReadme, command, subcommand),
	}
	for name, content := range files {
		if err := afero.WriteFile(fsys, filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", name, err)
		}
	}
	return dir, nil
}

func validName(name string) error {
	if name == "" {
		return errors.New("command name must not be empty")
	}
	if strings.ContainsAny(name, `/\ `) || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "-") {
		return fmt.Errorf("invalid command name %q", name)
	}
	return nil
}

// List writes one row per subcommand.
func List(w io.Writer, cat *Catalog) {
	rows := make([][]string, 0)
	for _, c := range cat.Commands {
		for _, s := range c.Subcommands {
			rows = append(rows, []string{c.Name, s.Name, s.Description})
		}
	}
	if len(rows) == 0 {
		fmt.Fprintf(w, "No commands found in %s\n", cat.Root)
		return
	}
	terminal.Table(w, []string{"COMMAND", "SUBCOMMAND", "DESCRIPTION"}, rows)
}

// Describe renders the subcommand README, or a summary of its options when
// there is none.
func Describe(w io.Writer, fsys afero.Fs, cat *Catalog, command, subcommand string, width int) error {
	sub, err := cat.Find(command, subcommand)
	if err != nil {
		return err
	}
	md, err := afero.ReadFile(fsys, filepath.Join(sub.Dir, ReadmeFileName))
	if err != nil {
		md = []byte(summary(command, sub))
	}
	fmt.Fprintln(w, terminal.RenderMarkdown(string(md), width))
	return nil
}

func summary(command string, sub *Subcommand) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s %s\n\n", command, sub.Name)
	if sub.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", sub.Description)
	}
	if len(sub.Options) == 0 {
		return b.String()
	}
	b.WriteString("| option | type | default | required | description |\n|---|---|---|---|---|\n")
	for _, o := range sub.Options {
		if o.Name == "" {
			continue
		}
		req := ""
		if o.Required {
			req = "yes"
		}
		fmt.Fprintf(&b, "| --%s | %s | %s | %s | %s |\n", o.FlagName(), o.Type(), o.DefaultValue, req, o.Description)
	}
	return b.String()
}
