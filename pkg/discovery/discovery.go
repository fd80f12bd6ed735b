// Package discovery walks a command directory and collects the action
// files it contains.
package discovery

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/ormasoftchile/scaf/pkg/actions"
	"github.com/ormasoftchile/scaf/pkg/logging"
)

// DefaultIgnore is used when Options.Ignore is nil.
var DefaultIgnore = []string{"**/.git/**"}

const sniffLen = 512

// Options configures a walk.
type Options struct {
	// Ignore holds doublestar patterns matched against slash-separated
	// paths relative to the root.
	Ignore []string
}

// Entry is one parsed action file.
type Entry struct {
	Path string
	File *actions.ActionsFile
}

// Scan is the result of a walk, ordered by path.
type Scan struct {
	Root    string
	Entries []Entry
}

// Len reports the number of action files found.
func (s *Scan) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Entries)
}

// IOError reports a filesystem failure during traversal.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("could not read %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Walk visits every regular text file under root and parses the ones the
// action reader recognizes. Unrecognized files are dropped; a malformed
// action file fails the walk with the reader's *actions.ParseError.
func Walk(fsys afero.Fs, root string, opts Options) (*Scan, error) {
	ignore := opts.Ignore
	if ignore == nil {
		ignore = DefaultIgnore
	}
	for _, p := range ignore {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid ignore pattern %q", p)
		}
	}

	var candidates []string
	err := afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return &IOError{Path: path, Err: err}
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if rel != "." && ignored(ignore, filepath.ToSlash(rel), info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		text, err := isText(fsys, path)
		if err != nil {
			return &IOError{Path: path, Err: err}
		}
		if !text {
			logging.Debug().Str("path", path).Msg("skipping non-text file")
			return nil
		}
		candidates = append(candidates, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(candidates)
	scan := &Scan{Root: root}
	for _, path := range candidates {
		af, ok, err := actions.ReadFs(fsys, path)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		scan.Entries = append(scan.Entries, Entry{Path: path, File: af})
	}
	logging.Debug().Str("root", root).Int("files", len(candidates)).Int("actions", len(scan.Entries)).Msg("discovery complete")
	return scan, nil
}

func ignored(patterns []string, rel string, dir bool) bool {
	for _, p := range patterns {
		if doublestar.MatchUnvalidated(p, rel) {
			return true
		}
		// "**/.git/**" should prune the .git directory itself.
		if dir && doublestar.MatchUnvalidated(p, rel+"/") {
			return true
		}
	}
	return false
}

// isText sniffs the first bytes of a file. Files containing NUL or whose
// detected content type is not textual are treated as binary.
func isText(fsys afero.Fs, path string) (bool, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false, err
	}
	head := buf[:n]
	if bytes.IndexByte(head, 0) >= 0 {
		return false, nil
	}
	if n == 0 {
		return true, nil
	}
	ct := http.DetectContentType(head)
	return strings.HasPrefix(ct, "text/") || strings.Contains(ct, "json") || strings.Contains(ct, "xml"), nil
}
