package tui

import "github.com/charmbracelet/bubbles/key"

type clientKeyMap struct {
	Join   key.Binding
	Leave  key.Binding
	Pause  key.Binding
	Edit   key.Binding
	Submit key.Binding
	Cancel key.Binding
	Help   key.Binding
	Quit   key.Binding
}

func defaultClientKeyMap() clientKeyMap {
	return clientKeyMap{
		Join: key.NewBinding(
			key.WithKeys("j"),
			key.WithHelp("j", "join"),
		),
		Leave: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "leave"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "pause/resume"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "editor"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "connect"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k clientKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Join, k.Leave, k.Pause, k.Edit, k.Help, k.Quit}
}

func (k clientKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Join, k.Leave},
		{k.Pause, k.Edit},
		{k.Submit, k.Cancel, k.Help, k.Quit},
	}
}

type listKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Kick   key.Binding
	Help   key.Binding
	Quit   key.Binding
}

func defaultListKeyMap() listKeyMap {
	return listKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "move down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Kick: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "disconnect player"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k listKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Kick, k.Help, k.Quit}
}

func (k listKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select},
		{k.Kick, k.Help, k.Quit},
	}
}
