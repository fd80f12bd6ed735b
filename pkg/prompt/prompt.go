// Package prompt asks the questions declared by vars actions.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/ormasoftchile/scaf/pkg/actions"
)

// Prompter answers a question.
type Prompter interface {
	Ask(ctx context.Context, q actions.Question) (string, error)
}

// ErrCancelled is returned when the user aborts a prompt.
var ErrCancelled = errors.New("prompt cancelled")

// NoDefaultError is returned by Defaults for a question without a default.
type NoDefaultError struct {
	Name string
}

func (e *NoDefaultError) Error() string {
	return fmt.Sprintf("no value provided for '%s' and the question has no default", e.Name)
}

// Defaults answers every question with its default. It is used when the
// session is not interactive.
type Defaults struct{}

func (Defaults) Ask(_ context.Context, q actions.Question) (string, error) {
	if q.Default != "" {
		return q.Default, nil
	}
	if q.Type == actions.QuestionConfirm {
		return "false", nil
	}
	return "", &NoDefaultError{Name: q.Name}
}

// Interactive renders each question as a small Bubble Tea program.
type Interactive struct {
	In  io.Reader
	Out io.Writer
}

func (p *Interactive) Ask(ctx context.Context, q actions.Question) (string, error) {
	prog := tea.NewProgram(newQuestionModel(q),
		tea.WithInput(p.In),
		tea.WithOutput(p.Out),
		tea.WithContext(ctx),
	)
	final, err := prog.Run()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("prompt %s: %w", q.Name, err)
	}
	m := final.(questionModel)
	if m.cancelled {
		return "", ErrCancelled
	}
	return m.answer, nil
}

// New returns an interactive prompter when stdin and stdout are terminals,
// otherwise Defaults.
func New() Prompter {
	if term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())) {
		return &Interactive{In: os.Stdin, Out: os.Stdout}
	}
	return Defaults{}
}

// ParseBool reads a confirm answer. It accepts y/yes/true/1 and n/no/false/0
// in any case.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true", "1":
		return true, nil
	case "n", "no", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a yes/no answer", s)
}
