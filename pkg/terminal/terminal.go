// Package terminal is the single channel for user-facing notices: generated
// and skipped files, exec results and fatal errors.
package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Level classifies a notice.
type Level int

const (
	Info Level = iota
	Success
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Sink receives user-facing notices.
type Sink interface {
	Notify(level Level, msg string)
}

// Notice glyphs convey meaning without relying on color alone.
const (
	GlyphInfo    = "•"
	GlyphSuccess = "✓"
	GlyphWarn    = "!"
	GlyphError   = "✗"
)

// Palette matches the 256-color codes used across the CLI.
var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
)

var (
	infoStyle    = lipgloss.NewStyle().Foreground(colorCyan)
	successStyle = lipgloss.NewStyle().Foreground(colorGreen)
	warnStyle    = lipgloss.NewStyle().Foreground(colorYellow)
	errorStyle   = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
)

// Console writes notices to a writer, styled when the writer is a terminal.
type Console struct {
	out   io.Writer
	color bool
}

// NewConsole returns a console writing to out. Styling is enabled only
// when out is a terminal.
func NewConsole(out io.Writer) *Console {
	color := false
	if f, ok := out.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}
	return &Console{out: out, color: color}
}

// Stdout returns a console on os.Stdout.
func Stdout() *Console { return NewConsole(os.Stdout) }

func (c *Console) Notify(level Level, msg string) {
	glyph, style := decorate(level)
	line := glyph + " " + msg
	if c.color {
		line = style.Render(line)
	}
	fmt.Fprintln(c.out, line)
}

// Faint writes secondary text such as captured command output.
func (c *Console) Faint(text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	if c.color {
		text = dimStyle.Render(text)
	}
	fmt.Fprintln(c.out, text)
}

func decorate(level Level) (string, lipgloss.Style) {
	switch level {
	case Success:
		return GlyphSuccess, successStyle
	case Warn:
		return GlyphWarn, warnStyle
	case Error:
		return GlyphError, errorStyle
	default:
		return GlyphInfo, infoStyle
	}
}

// Notice is one recorded notification.
type Notice struct {
	Level Level
	Msg   string
}

// Recorder collects notices in memory.
type Recorder struct {
	Notices []Notice
}

func (r *Recorder) Notify(level Level, msg string) {
	r.Notices = append(r.Notices, Notice{Level: level, Msg: msg})
}

// Messages returns the text of every notice at level.
func (r *Recorder) Messages(level Level) []string {
	var out []string
	for _, n := range r.Notices {
		if n.Level == level {
			out = append(out, n.Msg)
		}
	}
	return out
}

// Count returns how many notices contain substr.
func (r *Recorder) Count(substr string) int {
	n := 0
	for _, notice := range r.Notices {
		if strings.Contains(notice.Msg, substr) {
			n++
		}
	}
	return n
}

// String renders the notices one per line, prefixed by level.
func (r *Recorder) String() string {
	var b strings.Builder
	for _, n := range r.Notices {
		fmt.Fprintf(&b, "%s: %s\n", n.Level, n.Msg)
	}
	return b.String()
}

// Tee forwards every notice to each sink.
type Tee []Sink

func (t Tee) Notify(level Level, msg string) {
	for _, s := range t {
		s.Notify(level, msg)
	}
}
