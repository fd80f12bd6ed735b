package execrunner

import "fmt"

// MissingCommandError is returned when an exec action names neither a
// command nor a command file. No process is launched.
type MissingCommandError struct{}

func (e *MissingCommandError) Error() string {
	return "no text found for the command or command-file field in exec action"
}

// ReadError reports a command file that cannot be used.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("can not read command file %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// SetupError reports a template or path that could not be resolved before
// launch. Field names the exec field; Expr is the original expression.
type SetupError struct {
	Field string
	Expr  string
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("error evaluating exec %s, expression %q: %v", e.Field, e.Expr, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// ExecutionFailedError reports a process that could not be launched or
// whose wait was interrupted.
type ExecutionFailedError struct {
	Command string
	Err     error
}

func (e *ExecutionFailedError) Error() string {
	return fmt.Sprintf("execution of command '%s' failed: %v", e.Command, e.Err)
}

func (e *ExecutionFailedError) Unwrap() error { return e.Err }
