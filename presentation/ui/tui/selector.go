package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Selector asks the user to pick one of a few options.
type Selector struct {
	placeholder string
	options     []string
	cursor      int
	choice      string
	keys        listKeyMap
	help        help.Model
}

func NewSelector(placeholder string, options []string) Selector {
	return Selector{
		placeholder: placeholder,
		options:     options,
		keys:        defaultListKeyMap(),
		help:        help.New(),
	}
}

// Choice is the first word of the selected option, empty if none was chosen.
func (m Selector) Choice() string {
	return m.choice
}

func (m Selector) Init() tea.Cmd {
	return nil
}

func (m Selector) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, m.keys.Select):
		if len(m.options) > 0 {
			m.choice = strings.Fields(m.options[m.cursor])[0]
		}
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Quit):
		return m, tea.Quit
	}
	return m, nil
}

func (m Selector) View() string {
	var b strings.Builder
	b.WriteString(brandStyle.Render("Awesome Vehicle Builder"))
	b.WriteString("\n\n")
	b.WriteString(titleStyle.Render(m.placeholder))
	b.WriteString("\n\n")
	for i, option := range m.options {
		if i == m.cursor {
			b.WriteString(activeRow.Render("> " + option))
		} else {
			b.WriteString("  " + option)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.Up, m.keys.Down, m.keys.Select, m.keys.Quit}))
	return b.String()
}
