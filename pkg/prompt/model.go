package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ormasoftchile/scaf/pkg/actions"
)

var (
	colorCyan   = lipgloss.Color("51")
	colorYellow = lipgloss.Color("214")
	colorDim    = lipgloss.Color("240")

	labelStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
	hintStyle   = lipgloss.NewStyle().Foreground(colorDim)
	answerStyle = lipgloss.NewStyle().Foreground(colorYellow)
)

// questionModel is the Bubble Tea model for a single question.
type questionModel struct {
	q      actions.Question
	input  textinput.Model
	cursor int
	yes    bool

	done      bool
	cancelled bool
	answer    string
}

func newQuestionModel(q actions.Question) questionModel {
	m := questionModel{q: q}
	switch q.Type {
	case actions.QuestionDropdown:
		for i, opt := range q.Options {
			if opt.Value == q.Default {
				m.cursor = i
			}
		}
	case actions.QuestionConfirm:
		m.yes, _ = ParseBool(q.Default)
	default:
		ti := textinput.New()
		ti.Placeholder = q.Default
		ti.Focus()
		m.input = ti
	}
	return m
}

func (m questionModel) Init() tea.Cmd {
	if m.q.Type == "" || m.q.Type == actions.QuestionInput {
		return textinput.Blink
	}
	return nil
}

func (m questionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.q.Type == "" || m.q.Type == actions.QuestionInput {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	if key.Type == tea.KeyCtrlC || key.Type == tea.KeyEsc {
		m.cancelled = true
		return m, tea.Quit
	}

	switch m.q.Type {
	case actions.QuestionDropdown:
		return m.updateDropdown(key)
	case actions.QuestionConfirm:
		return m.updateConfirm(key)
	default:
		if key.Type == tea.KeyEnter {
			m.answer = strings.TrimSpace(m.input.Value())
			if m.answer == "" {
				m.answer = m.q.Default
			}
			m.done = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m questionModel) updateDropdown(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	maxIdx := len(m.q.Options) - 1
	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < maxIdx {
			m.cursor++
		}
	case "enter":
		return m.choose(m.cursor)
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		idx := int(key.String()[0] - '1')
		if idx <= maxIdx {
			return m.choose(idx)
		}
	}
	return m, nil
}

func (m questionModel) choose(idx int) (tea.Model, tea.Cmd) {
	if idx < 0 || idx >= len(m.q.Options) {
		return m, nil
	}
	m.cursor = idx
	m.answer = m.q.Options[idx].Value
	m.done = true
	return m, tea.Quit
}

func (m questionModel) updateConfirm(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "y", "Y":
		m.yes = true
	case "n", "N":
		m.yes = false
	case "left", "right", "tab":
		m.yes = !m.yes
		return m, nil
	case "enter":
	default:
		return m, nil
	}
	m.answer = strconv.FormatBool(m.yes)
	m.done = true
	return m, tea.Quit
}

func (m questionModel) View() string {
	var b strings.Builder
	b.WriteString(labelStyle.Render("? " + m.q.Prompt()))
	b.WriteString(" ")

	if m.done {
		b.WriteString(answerStyle.Render(m.answer))
		b.WriteString("\n")
		return b.String()
	}

	switch m.q.Type {
	case actions.QuestionDropdown:
		b.WriteString("\n")
		for i, opt := range m.q.Options {
			label := opt.Label
			if label == "" {
				label = opt.Value
			}
			line := fmt.Sprintf("  %d. %s", i+1, label)
			if i == m.cursor {
				line = cursorStyle.Render(fmt.Sprintf("▸ %d. %s", i+1, label))
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString(hintStyle.Render("↑↓ select  Enter choose  1-9 quick select"))
	case actions.QuestionConfirm:
		if m.yes {
			b.WriteString(cursorStyle.Render("Yes") + " / No")
		} else {
			b.WriteString("Yes / " + cursorStyle.Render("No"))
		}
		b.WriteString(hintStyle.Render("  (y/n)"))
	default:
		b.WriteString(m.input.View())
	}
	b.WriteString("\n")
	return b.String()
}
