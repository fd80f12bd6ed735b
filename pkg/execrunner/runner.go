// Package execrunner runs the shell commands declared by exec actions:
// template resolution, working directory and redirection setup, timeout,
// concurrent capture of output and extraction of values into the model.
package execrunner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/ormasoftchile/scaf/pkg/actions"
	"github.com/ormasoftchile/scaf/pkg/logging"
	"github.com/ormasoftchile/scaf/pkg/model"
	"github.com/ormasoftchile/scaf/pkg/templating"
	"github.com/ormasoftchile/scaf/pkg/terminal"
)

// DefaultTimeout bounds a single command.
const DefaultTimeout = 300 * time.Second

// BuiltinShell runs commands in-process with the mvdan.cc/sh interpreter.
const BuiltinShell = "builtin"

// Runner executes exec actions.
type Runner struct {
	// Shell is the interpreter invoked as `<shell> -c <command>`. Empty
	// selects bash, falling back to sh when bash is not installed.
	Shell string
	// Timeout overrides DefaultTimeout when positive.
	Timeout time.Duration
	Sink    terminal.Sink
	// Fs reads command files. Nil uses the OS filesystem. Redirect targets
	// are always opened on the OS so the child gets real descriptors.
	Fs afero.Fs
}

// Request is one exec action with the state it runs against.
type Request struct {
	Action     *actions.Exec
	Model      model.Model
	Cwd        string
	CommandDir string
	Engine     templating.Engine
}

// result describes a finished process.
type result struct {
	stdout   []byte
	stderr   []byte
	exitCode int
	timedOut bool
}

// Run executes one exec action. Setup failures and interruption are
// returned as typed errors; a non-zero exit or a timeout is reported to
// the sink and Run returns nil so the engine continues.
func (r *Runner) Run(ctx context.Context, req Request) error {
	a := req.Action
	if a.Command == "" && a.CommandFile == "" {
		return &MissingCommandError{}
	}

	command, err := r.resolveCommand(req)
	if err != nil {
		return err
	}
	dir, err := resolveDir(req)
	if err != nil {
		return err
	}
	shell := r.shell()
	var script *syntax.File
	if shell == BuiltinShell {
		if script, err = parseScript(command); err != nil {
			return &SetupError{Field: "command", Expr: command, Err: err}
		}
	} else if _, err := parseScript(command); err != nil {
		logging.Debug().Err(err).Str("shell", shell).Msg("command is not valid bash syntax, passing it to the shell as is")
	}

	stdoutPath, err := resolveRedirect(req, "to", a.To)
	if err != nil {
		return err
	}
	stderrPath, err := resolveRedirect(req, "errto", a.ErrTo)
	if err != nil {
		return err
	}

	r.notify(terminal.Info, fmt.Sprintf("Executing: %s -c %s", shell, command))
	log := logging.With().Str("command", command).Str("dir", dir).Str("shell", shell).Logger()
	log.Debug().Str("to", stdoutPath).Str("errto", stderrPath).Msg("launching exec action")

	res, err := r.launch(ctx, shell, command, script, dir, stdoutPath, stderrPath)
	if err != nil {
		return err
	}

	switch {
	case res.timedOut:
		r.notify(terminal.Error, fmt.Sprintf("Command '%s' did not finish within %s and was stopped", command, r.timeout()))
		return nil
	case res.exitCode != 0:
		r.notify(terminal.Error, fmt.Sprintf("Command '%s' exited with value %d", command, res.exitCode))
		if msg := strings.TrimSpace(string(res.stderr)); msg != "" {
			r.notify(terminal.Error, "stderr = "+msg)
		}
		return nil
	}

	r.notify(terminal.Success, fmt.Sprintf("Command '%s' executed successfully", command))
	log.Debug().Int("stdout_bytes", len(res.stdout)).Int("stderr_bytes", len(res.stderr)).Msg("exec action finished")

	if a.Define != nil {
		r.define(a.Define, req.Model, res.stdout, stdoutPath)
	}
	return nil
}

func (r *Runner) define(d *actions.Define, m model.Model, stdout []byte, stdoutPath string) {
	expr, jq := d.Expression()
	if d.Name == "" || expr == "" {
		r.notify(terminal.Warn, "exec: define: needs both a name and a json-path or jq expression, skipping extraction")
		return
	}
	if stdoutPath != "" {
		r.notify(terminal.Warn, fmt.Sprintf("exec: define: stdout is redirected to %s, nothing to extract for '%s'", stdoutPath, d.Name))
		return
	}

	value, err := extract(stdout, expr, jq)
	if errors.Is(err, errNoResult) || (err == nil && value == nil) {
		r.notify(terminal.Warn, fmt.Sprintf("exec: define: '%s' has a null value for expression %s", d.Name, expr))
		return
	}
	if err != nil {
		r.notify(terminal.Warn, fmt.Sprintf("exec: define: could not extract '%s': %v", d.Name, err))
		return
	}
	if !m.PutIfAbsent(d.Name, value) {
		logging.Debug().Str("name", d.Name).Msg("define skipped, variable already set")
	}
}

func (r *Runner) resolveCommand(req Request) (string, error) {
	a := req.Action
	if a.Command != "" {
		cmd, err := req.Engine.Process(a.Command, req.Model)
		if err != nil {
			return "", &SetupError{Field: "command", Expr: a.Command, Err: err}
		}
		if strings.TrimSpace(cmd) == "" {
			return "", &MissingCommandError{}
		}
		return cmd, nil
	}

	path := a.CommandFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(req.CommandDir, path)
	}
	line, err := firstLine(r.fs(), path)
	if err != nil {
		return "", &ReadError{Path: path, Err: err}
	}
	cmd, err := req.Engine.Process(line, req.Model)
	if err != nil {
		return "", &SetupError{Field: "command-file", Expr: line, Err: err}
	}
	return cmd, nil
}

func firstLine(fsys afero.Fs, path string) (string, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", errors.New("not a regular file")
	}
	f, err := fsys.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", errors.New("file is empty")
	}
	line := strings.TrimSpace(sc.Text())
	if line == "" {
		return "", errors.New("first line is empty")
	}
	return line, nil
}

// resolveDir renders the dir template and returns a canonical absolute
// path to an existing directory. Empty selects cwd.
func resolveDir(req Request) (string, error) {
	expr := req.Action.Dir
	rendered, err := req.Engine.Process(expr, req.Model)
	if err != nil {
		return "", &SetupError{Field: "working directory", Expr: expr, Err: err}
	}
	dir := strings.TrimSpace(rendered)
	if dir == "" {
		dir = req.Cwd
	} else if !filepath.IsAbs(dir) {
		dir = filepath.Join(req.Cwd, dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", &SetupError{Field: "working directory", Expr: expr, Err: err}
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", &SetupError{Field: "working directory", Expr: expr, Err: err}
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return "", &SetupError{Field: "working directory", Expr: expr, Err: err}
	}
	if !info.IsDir() {
		return "", &SetupError{Field: "working directory", Expr: expr, Err: fmt.Errorf("%s is not a directory", canonical)}
	}
	return canonical, nil
}

// resolveRedirect renders a redirect template relative to cwd. An empty
// result means the stream is captured.
func resolveRedirect(req Request, field, expr string) (string, error) {
	if expr == "" {
		return "", nil
	}
	rendered, err := req.Engine.Process(expr, req.Model)
	if err != nil {
		return "", &SetupError{Field: field, Expr: expr, Err: err}
	}
	path := strings.TrimSpace(rendered)
	if path == "" {
		return "", nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(req.Cwd, path)
	}
	return filepath.Clean(path), nil
}

func (r *Runner) shell() string {
	if r.Shell != "" {
		return r.Shell
	}
	if _, err := exec.LookPath("bash"); err == nil {
		return "bash"
	}
	return "sh"
}

func (r *Runner) fs() afero.Fs {
	if r.Fs != nil {
		return r.Fs
	}
	return afero.NewOsFs()
}

func parseScript(command string) (*syntax.File, error) {
	return syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(command), "")
}

func (r *Runner) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultTimeout
}

func (r *Runner) notify(level terminal.Level, msg string) {
	if r.Sink != nil {
		r.Sink.Notify(level, msg)
	}
}

// launch starts the process and waits for it, bounded by the timeout.
// Streams without a redirect file are drained concurrently with the child.
func (r *Runner) launch(ctx context.Context, shell, command string, script *syntax.File, dir, stdoutPath, stderrPath string) (*result, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	stdoutFile, err := openRedirect(stdoutPath)
	if err != nil {
		return nil, &SetupError{Field: "to", Expr: stdoutPath, Err: err}
	}
	if stdoutFile != nil {
		defer stdoutFile.Close()
	}
	stderrFile, err := openRedirect(stderrPath)
	if err != nil {
		return nil, &SetupError{Field: "errto", Expr: stderrPath, Err: err}
	}
	if stderrFile != nil {
		defer stderrFile.Close()
	}

	var res *result
	if shell == BuiltinShell {
		res, err = runBuiltin(runCtx, script, dir, stdoutFile, stderrFile)
	} else {
		res, err = runExternal(runCtx, shell, command, dir, stdoutFile, stderrFile)
	}

	// Parent cancellation wins over every other outcome.
	if ctx.Err() != nil {
		return nil, &ExecutionFailedError{Command: command, Err: ctx.Err()}
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return &result{timedOut: true}, nil
	}
	if err != nil {
		return nil, &ExecutionFailedError{Command: command, Err: err}
	}
	return res, nil
}

func openRedirect(path string) (*os.File, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
}

func runExternal(ctx context.Context, shell, command, dir string, stdoutFile, stderrFile *os.File) (*result, error) {
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Dir = dir
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	var pipes []io.ReadCloser
	var sinks []*bytes.Buffer

	if stdoutFile != nil {
		cmd.Stdout = stdoutFile
	} else {
		p, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		pipes, sinks = append(pipes, p), append(sinks, &stdout)
	}
	if stderrFile != nil {
		cmd.Stderr = stderrFile
	} else {
		p, err := cmd.StderrPipe()
		if err != nil {
			return nil, err
		}
		pipes, sinks = append(pipes, p), append(sinks, &stderr)
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	// A grandchild can keep the write end open after the child is killed;
	// closing the read ends unblocks the drains.
	stop := context.AfterFunc(ctx, func() {
		for _, p := range pipes {
			p.Close()
		}
	})
	defer stop()

	var g errgroup.Group
	for i := range pipes {
		p, buf := pipes[i], sinks[i]
		g.Go(func() error {
			_, err := io.Copy(buf, p)
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
	}
	drainErr := g.Wait()
	waitErr := cmd.Wait()

	res := &result{stdout: stdout.Bytes(), stderr: stderr.Bytes()}
	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
		res.exitCode = exitErr.ExitCode()
	default:
		return nil, waitErr
	}
	if drainErr != nil {
		return nil, fmt.Errorf("read command output: %w", drainErr)
	}
	return res, nil
}

func runBuiltin(ctx context.Context, file *syntax.File, dir string, stdoutFile, stderrFile *os.File) (*result, error) {
	var stdout, stderr bytes.Buffer
	var outW, errW io.Writer = &stdout, &stderr
	if stdoutFile != nil {
		outW = stdoutFile
	}
	if stderrFile != nil {
		errW = stderrFile
	}

	runner, err := interp.New(
		interp.StdIO(nil, outW, errW),
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(os.Environ()...)),
	)
	if err != nil {
		return nil, err
	}

	res := &result{}
	if err := runner.Run(ctx, file); err != nil {
		status, ok := interp.IsExitStatus(err)
		if !ok {
			return nil, err
		}
		res.exitCode = int(status)
	}
	res.stdout, res.stderr = stdout.Bytes(), stderr.Bytes()
	return res, nil
}
