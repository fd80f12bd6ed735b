// Package inject inserts rendered fragments into existing files.
package inject

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"

	"github.com/ormasoftchile/scaf/pkg/actions"
	"github.com/ormasoftchile/scaf/pkg/model"
	"github.com/ormasoftchile/scaf/pkg/templating"
	"github.com/ormasoftchile/scaf/pkg/terminal"
)

// Handler executes inject actions. The engine calls it once per action.
type Handler interface {
	Execute(ctx context.Context, a *actions.Inject, m model.Model, cwd string, engine templating.Engine) error
}

// MarkerNotFoundError reports an after/before pattern absent from the target.
type MarkerNotFoundError struct {
	Path    string
	Pattern string
}

func (e *MarkerNotFoundError) Error() string {
	return fmt.Sprintf("could not inject into %s: marker %q not found", e.Path, e.Pattern)
}

// FileHandler is the default Handler. It operates on Fs, defaulting to the
// OS filesystem.
type FileHandler struct {
	Fs   afero.Fs
	Sink terminal.Sink
}

func (h *FileHandler) Execute(ctx context.Context, a *actions.Inject, m model.Model, cwd string, engine templating.Engine) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fsys := h.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	to, err := engine.Process(a.To, m)
	if err != nil {
		return fmt.Errorf("inject: render target %q: %w", a.To, err)
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("inject: target %q rendered to an empty path", a.To)
	}
	path := to
	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}

	text, err := engine.Process(a.Text, m)
	if err != nil {
		return fmt.Errorf("inject: render text for %s: %w", path, err)
	}

	existing, err := afero.ReadFile(fsys, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if !a.Create {
			return fmt.Errorf("inject: target %s does not exist", path)
		}
		if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("inject: create parent of %s: %w", path, err)
		}
	case err != nil:
		return fmt.Errorf("inject: read %s: %w", path, err)
	}
	content := string(existing)

	if a.Skip != "" {
		skip, err := engine.Process(a.Skip, m)
		if err != nil {
			return fmt.Errorf("inject: render skip for %s: %w", path, err)
		}
		if skip != "" && strings.Contains(content, skip) {
			h.notify(terminal.Info, fmt.Sprintf("Skipping injection into %s, content already present", path))
			return nil
		}
	}

	updated, err := insert(content, text, a)
	if err != nil {
		var mnf *MarkerNotFoundError
		if errors.As(err, &mnf) {
			mnf.Path = path
		}
		return err
	}

	mode := os.FileMode(0o644)
	if info, err := fsys.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := afero.WriteFile(fsys, path, []byte(updated), mode); err != nil {
		return fmt.Errorf("inject: write %s: %w", path, err)
	}
	h.notify(terminal.Success, fmt.Sprintf("Injected into %s", path))
	return nil
}

func (h *FileHandler) notify(level terminal.Level, msg string) {
	if h.Sink != nil {
		h.Sink.Notify(level, msg)
	}
}

// insert places text as whole lines relative to the first marker match, or
// at the start or end of content.
func insert(content, text string, a *actions.Inject) (string, error) {
	fragment := text
	if !strings.HasSuffix(fragment, "\n") {
		fragment += "\n"
	}

	pattern := a.After
	if pattern == "" {
		pattern = a.Before
	}
	if pattern != "" {
		re, err := regexp.Compile("(?m)" + pattern)
		if err != nil {
			return "", fmt.Errorf("inject: invalid marker %q: %w", pattern, err)
		}
		loc := re.FindStringIndex(content)
		if loc == nil {
			return "", &MarkerNotFoundError{Pattern: pattern}
		}
		if a.After != "" {
			// Insert after the line holding the end of the match.
			at := lineEnd(content, loc[1])
			prefix := content[:at]
			if !strings.HasSuffix(prefix, "\n") {
				prefix += "\n"
			}
			return prefix + fragment + content[at:], nil
		}
		at := strings.LastIndex(content[:loc[0]], "\n") + 1
		return content[:at] + fragment + content[at:], nil
	}

	if a.At == actions.AtStart {
		return fragment + content, nil
	}
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + fragment, nil
}

// lineEnd returns the index just past the newline ending the line that
// contains position i, or len(s).
func lineEnd(s string, i int) int {
	if i > 0 && s[i-1] == '\n' {
		return i
	}
	if n := strings.IndexByte(s[i:], '\n'); n >= 0 {
		return i + n + 1
	}
	return len(s)
}
