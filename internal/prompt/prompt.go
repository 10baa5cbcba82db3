// Package prompt asks the user for values that were not given as flags or
// arguments.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrCancelled is returned when the user aborts a prompt.
var ErrCancelled = errors.New("prompt cancelled")

// Prompter asks questions.
type Prompter interface {
	Select(ctx context.Context, title string, options []string) (string, error)
	Input(ctx context.Context, title, placeholder string) (string, error)
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	selectedStyle = lipgloss.NewStyle().Bold(true)
)

// Terminal prompts on a terminal with bubbletea programs.
type Terminal struct {
	In  io.Reader
	Out io.Writer
}

// NewTerminal prompts on stdin and stderr.
func NewTerminal() *Terminal {
	return &Terminal{In: os.Stdin, Out: os.Stderr}
}

// Select asks the user to pick one of options.
func (t *Terminal) Select(ctx context.Context, title string, options []string) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("select %q: no options", title)
	}

	final, err := t.run(ctx, newSelectModel(title, options))
	if err != nil {
		return "", err
	}
	m := final.(*selectModel)
	if m.cancelled {
		return "", ErrCancelled
	}
	return m.options[m.cursor], nil
}

// Input asks the user for one line of text.
func (t *Terminal) Input(ctx context.Context, title, placeholder string) (string, error) {
	final, err := t.run(ctx, newInputModel(title, placeholder))
	if err != nil {
		return "", err
	}
	m := final.(*inputModel)
	if m.cancelled {
		return "", ErrCancelled
	}
	return m.value, nil
}

func (t *Terminal) run(ctx context.Context, model tea.Model) (tea.Model, error) {
	p := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithInput(t.In),
		tea.WithOutput(t.Out),
	)
	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("run prompt: %w", err)
	}
	return final, nil
}

type selectModel struct {
	title     string
	options   []string
	cursor    int
	done      bool
	cancelled bool
}

func newSelectModel(title string, options []string) *selectModel {
	return &selectModel{title: title, options: options}
}

func (m *selectModel) Init() tea.Cmd { return nil }

func (m *selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "esc", "q":
		m.done, m.cancelled = true, true
		return m, tea.Quit
	case "enter":
		m.done = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
	}
	return m, nil
}

func (m *selectModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	for i, option := range m.options {
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> ") + selectedStyle.Render(option))
		} else {
			b.WriteString("  " + option)
		}
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("↑/↓ move • enter select • esc cancel"))
	return b.String()
}

type inputModel struct {
	title     string
	input     textinput.Model
	value     string
	done      bool
	cancelled bool
}

func newInputModel(title, placeholder string) *inputModel {
	input := textinput.New()
	input.Placeholder = placeholder
	input.Prompt = "> "
	input.Focus()
	return &inputModel{title: title, input: input}
}

func (m *inputModel) Init() tea.Cmd { return textinput.Blink }

func (m *inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "esc":
			m.done, m.cancelled = true, true
			return m, tea.Quit
		case "enter":
			m.value = strings.TrimSpace(m.input.Value())
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *inputModel) View() string {
	if m.done {
		return ""
	}
	return titleStyle.Render(m.title) + "\n" + m.input.View() + "\n" + helpStyle.Render("enter submit • esc cancel")
}
