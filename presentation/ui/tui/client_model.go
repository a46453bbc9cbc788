package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"avb/application/session/client"
	"avb/domain/app"
	"avb/domain/session"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	refreshInterval = 100 * time.Millisecond
	logLines        = 8
)

// ClientController is what the client dashboard drives.
type ClientController interface {
	Snapshot() client.Snapshot
	AppState() app.State
	LastFailure() error
	EntityCount() int
	// Join connects to address, or to the configured server when address is empty.
	Join(address string) error
	Leave() error
	SetSubState(sub app.GameSubState) error
}

type refreshMsg struct{}

type contextDoneMsg struct{}

type actionResultMsg struct {
	action string
	err    error
}

type ClientModel struct {
	ctx        context.Context
	controller ClientController
	logs       LogFeed
	keys       clientKeyMap
	help       help.Model
	address    textinput.Model
	entering   bool
	status     string
	statusErr  bool
}

func NewClientModel(ctx context.Context, controller ClientController, logs LogFeed) ClientModel {
	input := textinput.New()
	input.Placeholder = "ip:port (empty for the configured server)"
	input.CharLimit = 64
	input.Prompt = "server> "
	return ClientModel{
		ctx:        ctx,
		controller: controller,
		logs:       logs,
		keys:       defaultClientKeyMap(),
		help:       help.New(),
		address:    input,
	}
}

func (m ClientModel) Init() tea.Cmd {
	return tea.Batch(refresh(), waitForDone(m.ctx))
}

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return refreshMsg{}
	})
}

func waitForDone(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		<-ctx.Done()
		return contextDoneMsg{}
	}
}

func perform(action string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionResultMsg{action: action, err: fn()}
	}
}

func (m ClientModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil
	case refreshMsg:
		return m, refresh()
	case contextDoneMsg:
		return m, tea.Quit
	case actionResultMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
			m.statusErr = true
		} else {
			m.status = msg.action + " requested"
			m.statusErr = false
		}
		return m, nil
	case tea.KeyMsg:
		if m.entering {
			return m.updateAddress(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m ClientModel) updateAddress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		m.entering = false
		m.address.Blur()
		address := strings.TrimSpace(m.address.Value())
		return m, perform("join", func() error {
			return m.controller.Join(address)
		})
	case key.Matches(msg, m.keys.Cancel):
		m.entering = false
		m.address.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.address, cmd = m.address.Update(msg)
	return m, cmd
}

func (m ClientModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	state := m.controller.AppState()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Join):
		if m.controller.Snapshot().State != session.Idle {
			m.status, m.statusErr = "already joining or joined; leave first", true
			return m, nil
		}
		m.entering = true
		m.address.SetValue("")
		return m, m.address.Focus()
	case key.Matches(msg, m.keys.Leave):
		return m, perform("leave", m.controller.Leave)
	case key.Matches(msg, m.keys.Pause):
		if sub, ok := state.SubState(); ok {
			next := app.Paused
			if sub == app.Paused {
				next = app.Playing
			}
			return m, perform(next.String(), func() error { return m.controller.SetSubState(next) })
		}
	case key.Matches(msg, m.keys.Edit):
		if sub, ok := state.SubState(); ok {
			next := app.Editing
			if sub == app.Editing {
				next = app.Playing
			}
			return m, perform(next.String(), func() error { return m.controller.SetSubState(next) })
		}
	}
	return m, nil
}

func (m ClientModel) View() string {
	snapshot := m.controller.Snapshot()
	state := m.controller.AppState()

	var b strings.Builder
	b.WriteString(brandStyle.Render("Awesome Vehicle Builder"))
	b.WriteString(dimStyle.Render("  client"))
	b.WriteString("\n\n")

	b.WriteString(field("screen", state.String()) + "\n")
	b.WriteString(field("connection", connectionStyle(snapshot.State).Render(snapshot.State.String())) + "\n")
	target := "-"
	if snapshot.Target.IsValid() {
		target = snapshot.Target.String()
	}
	b.WriteString(field("server", target) + "\n")
	if snapshot.SessionID != "" {
		b.WriteString(field("session", snapshot.SessionID) + "\n")
	}
	b.WriteString(field("entities", fmt.Sprint(m.controller.EntityCount())) + "\n")
	if err := m.controller.LastFailure(); err != nil && snapshot.State == session.Idle {
		b.WriteString(field("last error", errorStyle.Render(err.Error())) + "\n")
	}

	if m.entering {
		b.WriteString("\n" + m.address.View() + "\n")
	}
	if m.status != "" {
		style := okStyle
		if m.statusErr {
			style = errorStyle
		}
		b.WriteString("\n" + style.Render(m.status) + "\n")
	}

	if m.logs != nil {
		if lines := m.logs.Tail(logLines); len(lines) > 0 {
			b.WriteString("\n" + frameStyle.Render(dimStyle.Render(strings.Join(lines, "\n"))) + "\n")
		}
	}
	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func connectionStyle(state session.ConnectionState) lipglossStyle {
	switch state {
	case session.Connected:
		return okStyle
	case session.Authenticating:
		return warnStyle
	default:
		return dimStyle
	}
}
