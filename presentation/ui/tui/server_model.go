package tui

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"avb/application/session/server"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

const kickReason = "kicked by the host"

// ServerView is what the server dashboard reads and controls.
type ServerView interface {
	Peers() []*server.Peer
	ConnectionCount() int
	MaxPlayers() int
	LocalAddr() netip.AddrPort
	Disconnect(addr netip.AddrPort, reason string) error
}

type ServerModel struct {
	ctx     context.Context
	view    ServerView
	summary func() string
	logs    LogFeed
	keys    listKeyMap
	help    help.Model
	cursor  int
	status  string
	now     func() time.Time
}

// NewServerModel builds the host dashboard. summary may be nil.
func NewServerModel(ctx context.Context, view ServerView, summary func() string, logs LogFeed) ServerModel {
	return ServerModel{
		ctx:     ctx,
		view:    view,
		summary: summary,
		logs:    logs,
		keys:    defaultListKeyMap(),
		help:    help.New(),
		now:     time.Now,
	}
}

func (m ServerModel) Init() tea.Cmd {
	return tea.Batch(refresh(), waitForDone(m.ctx))
}

func (m ServerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
	case refreshMsg:
		m.clampCursor(len(m.view.Peers()))
		return m, refresh()
	case contextDoneMsg:
		return m, tea.Quit
	case tea.KeyMsg:
		peers := m.view.Peers()
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(peers)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Kick):
			if m.cursor >= len(peers) {
				return m, nil
			}
			addr := peers[m.cursor].Address()
			if err := m.view.Disconnect(addr, kickReason); err != nil {
				m.status = fmt.Sprintf("disconnect %s: %v", addr, err)
			} else {
				m.status = fmt.Sprintf("disconnected %s", addr)
			}
			m.clampCursor(len(m.view.Peers()))
		}
	}
	return m, nil
}

func (m *ServerModel) clampCursor(n int) {
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m ServerModel) View() string {
	var b strings.Builder
	b.WriteString(brandStyle.Render("Awesome Vehicle Builder"))
	b.WriteString(dimStyle.Render("  server"))
	b.WriteString("\n\n")

	b.WriteString(field("listening", m.view.LocalAddr().String()) + "\n")
	b.WriteString(field("players", fmt.Sprintf("%d/%d", m.view.ConnectionCount(), m.view.MaxPlayers())) + "\n")
	if m.summary != nil {
		b.WriteString(field("totals", m.summary()) + "\n")
	}

	b.WriteString("\n" + titleStyle.Render("Players") + "\n")
	peers := m.view.Peers()
	if len(peers) == 0 {
		b.WriteString(dimStyle.Render("  nobody connected") + "\n")
	}
	for i, peer := range peers {
		row := fmt.Sprintf("%-22s client %-20d %-14s %s",
			peer.Address(),
			peer.ClientID(),
			peer.Mechanism(),
			m.now().Sub(peer.EstablishedAt()).Truncate(time.Second),
		)
		if i == m.cursor {
			b.WriteString(activeRow.Render("> "+row) + "\n")
		} else {
			b.WriteString("  " + row + "\n")
		}
	}

	if m.status != "" {
		b.WriteString("\n" + warnStyle.Render(m.status) + "\n")
	}
	if m.logs != nil {
		if lines := m.logs.Tail(logLines); len(lines) > 0 {
			b.WriteString("\n" + frameStyle.Render(dimStyle.Render(strings.Join(lines, "\n"))) + "\n")
		}
	}
	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}
