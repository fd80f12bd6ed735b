package execrunner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/ormasoftchile/scaf/pkg/actions"
	"github.com/ormasoftchile/scaf/pkg/model"
	"github.com/ormasoftchile/scaf/pkg/templating"
	"github.com/ormasoftchile/scaf/pkg/terminal"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("exec tests need a POSIX shell")
	}
}

func newRunner() (*Runner, *terminal.Recorder) {
	rec := &terminal.Recorder{}
	return &Runner{Sink: rec}, rec
}

func request(t *testing.T, a *actions.Exec, m model.Model) Request {
	t.Helper()
	if m == nil {
		m = model.New()
	}
	return Request{
		Action:     a,
		Model:      m,
		Cwd:        t.TempDir(),
		CommandDir: t.TempDir(),
		Engine:     templating.MustacheEngine{},
	}
}

func TestMissingCommand(t *testing.T) {
	r, rec := newRunner()
	err := r.Run(context.Background(), request(t, &actions.Exec{Dir: "x"}, nil))
	var mc *MissingCommandError
	if !errors.As(err, &mc) {
		t.Fatalf("expected *MissingCommandError, got %v", err)
	}
	if len(rec.Notices) != 0 {
		t.Errorf("no notice expected before launch, got %v", rec.Notices)
	}
}

func TestDefineFirstWriterWins(t *testing.T) {
	skipOnWindows(t)
	r, _ := newRunner()
	m := model.New()

	first := request(t, &actions.Exec{
		Command: `echo '{"a": 42}'`,
		Define:  &actions.Define{Name: "x", JSONPath: "$.a"},
	}, m)
	if err := r.Run(context.Background(), first); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if fmt.Sprint(m["x"]) != "42" {
		t.Fatalf("x = %v (%T), want 42", m["x"], m["x"])
	}

	second := first
	second.Action = &actions.Exec{
		Command: `echo '{"a": 7}'`,
		Define:  &actions.Define{Name: "x", JSONPath: "$.a"},
	}
	if err := r.Run(context.Background(), second); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if fmt.Sprint(m["x"]) != "42" {
		t.Errorf("x = %v, want 42 to survive the second define", m["x"])
	}
}

func TestDefineLenientJSON(t *testing.T) {
	skipOnWindows(t)
	r, _ := newRunner()
	m := model.New()
	req := request(t, &actions.Exec{
		Command: `echo '{name: "Hello iPhone"}'`,
		Define:  &actions.Define{Name: "greeting", JSONPath: "$.name"},
	}, m)
	if err := r.Run(context.Background(), req); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m["greeting"] != "Hello iPhone" {
		t.Errorf("greeting = %v", m["greeting"])
	}
}

func TestDefineJQ(t *testing.T) {
	skipOnWindows(t)
	r, _ := newRunner()
	m := model.New()
	req := request(t, &actions.Exec{
		Command: `echo '{"items":[{"id":1},{"id":2}]}'`,
		Define:  &actions.Define{Name: "second", JQ: ".items[1].id"},
	}, m)
	if err := r.Run(context.Background(), req); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fmt.Sprint(m["second"]) != "2" {
		t.Errorf("second = %v", m["second"])
	}
}

func TestDefineDiagnostics(t *testing.T) {
	skipOnWindows(t)
	tests := []struct {
		name   string
		action *actions.Exec
		want   string
	}{
		{"incomplete", &actions.Exec{Command: `echo '{"a":1}'`, Define: &actions.Define{Name: "x"}}, "needs both a name"},
		{"null value", &actions.Exec{Command: `echo '{"a":null}'`, Define: &actions.Define{Name: "x", JSONPath: "$.a"}}, "null value"},
		{"no match", &actions.Exec{Command: `echo '{"a":1}'`, Define: &actions.Define{Name: "x", JSONPath: "$.b"}}, "null value"},
		{"not json", &actions.Exec{Command: `echo '{"a": [1, 2'`, Define: &actions.Define{Name: "x", JSONPath: "$.a"}}, "could not extract"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, rec := newRunner()
			m := model.New()
			if err := r.Run(context.Background(), request(t, tt.action, m)); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if m.Has("x") {
				t.Errorf("x should not be defined, got %v", m["x"])
			}
			if rec.Count(tt.want) != 1 {
				t.Errorf("expected a notice containing %q, got:\n%s", tt.want, rec)
			}
		})
	}
}

func TestNonZeroExitIsReported(t *testing.T) {
	skipOnWindows(t)
	r, rec := newRunner()
	err := r.Run(context.Background(), request(t, &actions.Exec{Command: "echo oops 1>&2; exit 3"}, nil))
	if err != nil {
		t.Fatalf("non-zero exit must not fail the run: %v", err)
	}
	if rec.Count("exited with value 3") != 1 {
		t.Errorf("missing exit notice:\n%s", rec)
	}
	if rec.Count("stderr = oops") != 1 {
		t.Errorf("missing stderr notice:\n%s", rec)
	}
}

func TestTimeoutKillsAndContinues(t *testing.T) {
	skipOnWindows(t)
	rec := &terminal.Recorder{}
	r := &Runner{Sink: rec, Timeout: 200 * time.Millisecond}

	start := time.Now()
	err := r.Run(context.Background(), request(t, &actions.Exec{Command: "sleep 10"}, nil))
	if err != nil {
		t.Fatalf("timeout must not fail the run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Run took %s, child was not stopped", elapsed)
	}
	if rec.Count("did not finish within") != 1 {
		t.Errorf("missing timeout notice:\n%s", rec)
	}
	if rec.Count("executed successfully") != 0 {
		t.Errorf("timeout reported as success:\n%s", rec)
	}
}

func TestCancellationIsExecutionFailed(t *testing.T) {
	skipOnWindows(t)
	r, _ := newRunner()
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	err := r.Run(ctx, request(t, &actions.Exec{Command: "sleep 10"}, nil))
	var ef *ExecutionFailedError
	if !errors.As(err, &ef) {
		t.Fatalf("expected *ExecutionFailedError, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error should wrap context.Canceled: %v", err)
	}
}

func TestRedirection(t *testing.T) {
	skipOnWindows(t)
	r, _ := newRunner()
	req := request(t, &actions.Exec{
		Command: "echo hello; echo bad 1>&2",
		To:      "out/{{kind}}.txt",
		ErrTo:   "err.txt",
	}, model.Model{"kind": "stdout"})
	if err := r.Run(context.Background(), req); err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertFile(t, filepath.Join(req.Cwd, "out", "stdout.txt"), "hello\n")
	assertFile(t, filepath.Join(req.Cwd, "err.txt"), "bad\n")
}

func TestRedirectionTruncates(t *testing.T) {
	skipOnWindows(t)
	r, _ := newRunner()
	req := request(t, &actions.Exec{Command: "echo short", To: "out.txt"}, nil)
	if err := os.WriteFile(filepath.Join(req.Cwd, "out.txt"), []byte("a much longer previous content\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background(), req); err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertFile(t, filepath.Join(req.Cwd, "out.txt"), "short\n")
}

func TestWorkingDirectory(t *testing.T) {
	skipOnWindows(t)
	r, _ := newRunner()
	req := request(t, &actions.Exec{Command: "echo here > marker.txt", Dir: "{{module}}"}, model.Model{"module": "sub"})
	if err := os.Mkdir(filepath.Join(req.Cwd, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background(), req); err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertFile(t, filepath.Join(req.Cwd, "sub", "marker.txt"), "here\n")
}

func TestWorkingDirectoryMissing(t *testing.T) {
	r, rec := newRunner()
	err := r.Run(context.Background(), request(t, &actions.Exec{Command: "ls", Dir: "nope"}, nil))
	var se *SetupError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SetupError, got %v", err)
	}
	if se.Expr != "nope" {
		t.Errorf("Expr = %q, want the original expression", se.Expr)
	}
	if rec.Count("Executing") != 0 {
		t.Error("nothing should be launched")
	}
}

func TestCommandFile(t *testing.T) {
	skipOnWindows(t)
	r, _ := newRunner()
	req := request(t, &actions.Exec{CommandFile: "cmd.txt"}, model.Model{"name": "scaf"})
	script := "echo {{name}} > name.txt\necho second > second.txt\n"
	if err := os.WriteFile(filepath.Join(req.CommandDir, "cmd.txt"), []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background(), req); err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertFile(t, filepath.Join(req.Cwd, "name.txt"), "scaf\n")
	if _, err := os.Stat(filepath.Join(req.Cwd, "second.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Error("only the first line of the command file should run")
	}
}

func TestCommandFileMissing(t *testing.T) {
	r, _ := newRunner()
	req := request(t, &actions.Exec{CommandFile: "missing.txt"}, nil)
	err := r.Run(context.Background(), req)
	var re *ReadError
	if !errors.As(err, &re) {
		t.Fatalf("expected *ReadError, got %v", err)
	}
	if want := filepath.Join(req.CommandDir, "missing.txt"); re.Path != want {
		t.Errorf("Path = %q, want %q", re.Path, want)
	}
}

func TestCommandFileIsDirectory(t *testing.T) {
	r, _ := newRunner()
	req := request(t, &actions.Exec{CommandFile: "dir"}, nil)
	if err := os.Mkdir(filepath.Join(req.CommandDir, "dir"), 0o755); err != nil {
		t.Fatal(err)
	}
	var re *ReadError
	if err := r.Run(context.Background(), req); !errors.As(err, &re) {
		t.Fatalf("expected *ReadError, got %v", err)
	}
}

func TestCommandFileFromFs(t *testing.T) {
	skipOnWindows(t)
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/commands/new/cmd.txt", []byte("echo {{name}} > name.txt\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := fsys.MkdirAll("/commands/new/dir", 0o755); err != nil {
		t.Fatal(err)
	}
	rec := &terminal.Recorder{}
	r := &Runner{Sink: rec, Fs: fsys}

	req := request(t, &actions.Exec{CommandFile: "cmd.txt"}, model.Model{"name": "memfs"})
	req.CommandDir = "/commands/new"
	if err := r.Run(context.Background(), req); err != nil {
		t.Fatalf("Run: %v\n%s", err, rec)
	}
	assertFile(t, filepath.Join(req.Cwd, "name.txt"), "memfs\n")

	req = request(t, &actions.Exec{CommandFile: "dir"}, nil)
	req.CommandDir = "/commands/new"
	var re *ReadError
	if err := r.Run(context.Background(), req); !errors.As(err, &re) {
		t.Fatalf("expected *ReadError, got %v", err)
	}
}

func TestBuiltinSyntaxErrorIsSetupError(t *testing.T) {
	r := &Runner{Sink: &terminal.Recorder{}, Shell: BuiltinShell}
	err := r.Run(context.Background(), request(t, &actions.Exec{Command: `echo "unterminated`}, nil))
	var se *SetupError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SetupError, got %v", err)
	}
}

func TestExternalShellReceivesCommandUnparsed(t *testing.T) {
	skipOnWindows(t)
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not installed")
	}
	rec := &terminal.Recorder{}
	r := &Runner{Sink: rec, Shell: "bash"}

	// bash accepts an unterminated here-document with a warning.
	req := request(t, &actions.Exec{Command: "cat <<EOF\nhello", To: "out.txt"}, nil)
	if err := r.Run(context.Background(), req); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.Count("executed successfully") != 1 {
		t.Errorf("expected success notice:\n%s", rec)
	}
	assertFile(t, filepath.Join(req.Cwd, "out.txt"), "hello\n")

	// A command the shell itself rejects is a failed exit, not a setup error.
	rec.Notices = nil
	if err := r.Run(context.Background(), request(t, &actions.Exec{Command: `echo "unterminated`}, nil)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.Count("exited with value") != 1 {
		t.Errorf("expected exit notice:\n%s", rec)
	}
}

func TestBuiltinShell(t *testing.T) {
	rec := &terminal.Recorder{}
	r := &Runner{Sink: rec, Shell: BuiltinShell}
	m := model.New()
	req := request(t, &actions.Exec{
		Command: `echo '{"tag": "v1.2.3"}'`,
		Define:  &actions.Define{Name: "tag", JSONPath: "$.tag"},
	}, m)
	if err := r.Run(context.Background(), req); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m["tag"] != "v1.2.3" {
		t.Errorf("tag = %v\n%s", m["tag"], rec)
	}

	if err := r.Run(context.Background(), request(t, &actions.Exec{Command: "exit 4"}, nil)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.Count("exited with value 4") != 1 {
		t.Errorf("missing builtin exit notice:\n%s", rec)
	}
}

func TestLargeOutputDoesNotDeadlock(t *testing.T) {
	skipOnWindows(t)
	r := &Runner{Sink: &terminal.Recorder{}, Timeout: 30 * time.Second}
	// Well above a pipe buffer on both streams.
	cmd := "i=0; while [ $i -lt 5000 ]; do echo 'line of stdout padding padding padding'; echo 'line of stderr padding' 1>&2; i=$((i+1)); done"
	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background(), request(t, &actions.Exec{Command: cmd}, nil)) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(20 * time.Second):
		t.Fatal("Run did not return, output was not drained")
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		out  string
		expr string
		jq   bool
		want string
	}{
		{"path", `{"a":{"b":"c"}}`, "$.a.b", false, "c"},
		{"multiple", `{"a":[1,2]}`, "$.a[*]", false, "[1 2]"},
		{"index", `{"a":[5,6]}`, "$.a[1]", false, "6"},
		{"wildcard single match", `{"a":[{"b":1}]}`, "$.a[*].b", false, "[1]"},
		{"descent single match", `{"x":{"id":7}}`, "$..id", false, "[7]"},
		{"filter", `{"a":[{"b":1},{"b":2}]}`, "$.a[?(@.b == 2)].b", false, "[2]"},
		{"unquoted keys", "{a: 1}", "$.a", false, "1"},
		{"jq", `{"a":{"b":"c"}}`, ".a.b", true, "c"},
		{"jq multiple", `{"a":[1,2]}`, ".a[]", true, "[1 2]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extract([]byte(tt.out), tt.expr, tt.jq)
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if fmt.Sprint(got) != tt.want {
				t.Errorf("extract = %v, want %s", got, tt.want)
			}
		})
	}

	if _, err := extract([]byte(`{}`), "$[", false); err == nil || !strings.Contains(err.Error(), "json-path") {
		t.Errorf("expected json-path parse error, got %v", err)
	}
}

func assertFile(t *testing.T, path, want string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if string(data) != want {
		t.Errorf("%s = %q, want %q", path, data, want)
	}
}
