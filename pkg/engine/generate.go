package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/afero"

	"github.com/ormasoftchile/scaf/pkg/actions"
	"github.com/ormasoftchile/scaf/pkg/logging"
	"github.com/ormasoftchile/scaf/pkg/model"
	"github.com/ormasoftchile/scaf/pkg/templating"
	"github.com/ormasoftchile/scaf/pkg/terminal"
)

// generate renders and writes one file. Every failure is reported to the
// sink and does not stop sibling actions.
func (e *Engine) generate(g *actions.Generate, m model.Model, cwd string, tmpl templating.Engine) {
	if strings.TrimSpace(g.Text) == "" {
		logging.Debug().Str("to", g.To).Msg("generate action has no text, skipping")
		return
	}
	to, err := tmpl.Process(g.To, m)
	if err != nil {
		e.notify(terminal.Error, fmt.Sprintf("Could not generate file %s: %v", g.To, err))
		return
	}
	to = strings.TrimSpace(to)
	if to == "" {
		logging.Debug().Str("to", g.To).Msg("generate destination rendered empty, skipping")
		return
	}
	path := to
	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}

	fsys := e.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	previous, err := afero.ReadFile(fsys, path)
	exists := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		e.notify(terminal.Error, fmt.Sprintf("Could not generate file %s: %v", path, err))
		return
	}
	if exists && !g.Overwrite {
		e.notify(terminal.Warn, fmt.Sprintf("Skipping generation of %s. File exists and overwrite option not specified.", path))
		return
	}

	body, err := tmpl.Process(g.Text, m)
	if err != nil {
		e.notify(terminal.Error, fmt.Sprintf("Could not generate file %s: %v", path, err))
		return
	}

	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		e.notify(terminal.Error, fmt.Sprintf("Could not generate file %s: %v", path, err))
		return
	}
	if err := afero.WriteFile(fsys, path, []byte(body), 0o644); err != nil {
		e.notify(terminal.Error, fmt.Sprintf("Could not generate file %s: %v", path, err))
		return
	}

	if exists {
		added, removed := lineChanges(string(previous), body)
		e.notify(terminal.Success, fmt.Sprintf("Generated %s (overwritten, +%d -%d lines)", path, added, removed))
		return
	}
	e.notify(terminal.Success, fmt.Sprintf("Generated %s", path))
}

// lineChanges counts inserted and deleted lines between two texts.
func lineChanges(before, after string) (added, removed int) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	for _, d := range diffs {
		n := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			removed += n
		}
	}
	return added, removed
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
