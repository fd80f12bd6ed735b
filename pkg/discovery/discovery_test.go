package discovery

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/ormasoftchile/scaf/pkg/actions"
)

const genDoc = "actions:\n  - generate:\n      to: out.txt\n      text: hi\n"

func writeFiles(t *testing.T, fsys afero.Fs, files map[string]string) {
	t.Helper()
	for path, content := range files {
		if err := afero.WriteFile(fsys, path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

func paths(s *Scan) []string {
	var out []string
	for _, e := range s.Entries {
		out = append(out, e.Path)
	}
	return out
}

func TestWalkKeepsRecognizedSorted(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{
		"/cmd/z.yaml":        genDoc,
		"/cmd/a.yml":         genDoc,
		"/cmd/sub/m.YAML":    genDoc,
		"/cmd/README.md":     "# hello",
		"/cmd/command.yaml":  "command:\n  description: demo\n",
		"/cmd/script.sh":     "echo hi\n",
		"/cmd/logo.yaml.png": "\x89PNG\r\n\x1a\n\x00\x00",
	})

	scan, err := Walk(fsys, "/cmd", Options{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	want := []string{"/cmd/a.yml", "/cmd/sub/m.YAML", "/cmd/z.yaml"}
	if diff := cmp.Diff(want, paths(scan)); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}

	again, err := Walk(fsys, "/cmd", Options{})
	if err != nil {
		t.Fatalf("second Walk: %v", err)
	}
	if diff := cmp.Diff(paths(scan), paths(again)); diff != "" {
		t.Errorf("walk is not deterministic:\n%s", diff)
	}
}

func TestWalkSkipsBinaryWithRecognizedExtension(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{
		"/cmd/blob.yaml": "actions:\x00\x01\x02",
		"/cmd/ok.yaml":   genDoc,
	})
	scan, err := Walk(fsys, "/cmd", Options{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if diff := cmp.Diff([]string{"/cmd/ok.yaml"}, paths(scan)); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkMalformedIsFatal(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{
		"/cmd/good.yaml": genDoc,
		"/cmd/bad.yaml":  "actions: [\n",
	})
	_, err := Walk(fsys, "/cmd", Options{})
	var pe *actions.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *actions.ParseError, got %v", err)
	}
	if pe.Path != "/cmd/bad.yaml" || !strings.Contains(err.Error(), "/cmd/bad.yaml") {
		t.Errorf("error does not name the file: %v", err)
	}
}

func TestWalkEmptyIsValid(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{"/cmd/notes.txt": "nothing"})
	scan, err := Walk(fsys, "/cmd", Options{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if scan.Len() != 0 {
		t.Errorf("Len = %d, want 0", scan.Len())
	}
}

func TestWalkIgnore(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{
		"/cmd/.git/config.yaml": "not: [valid",
		"/cmd/drafts/wip.yaml":  "also: [broken",
		"/cmd/keep.yaml":        genDoc,
	})

	if _, err := Walk(fsys, "/cmd", Options{}); err == nil {
		t.Fatal("expected drafts/wip.yaml to fail without an ignore pattern")
	}

	scan, err := Walk(fsys, "/cmd", Options{Ignore: []string{"**/.git/**", "drafts/**"}})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if diff := cmp.Diff([]string{"/cmd/keep.yaml"}, paths(scan)); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkInvalidIgnorePattern(t *testing.T) {
	if _, err := Walk(afero.NewMemMapFs(), "/cmd", Options{Ignore: []string{"[unclosed"}}); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestWalkMissingRootIsIOError(t *testing.T) {
	dir := t.TempDir()
	_, err := Walk(afero.NewOsFs(), filepath.Join(dir, "missing"), Options{})
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected *IOError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("IOError should wrap the not-exist cause: %v", err)
	}
}
