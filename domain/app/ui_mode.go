package app

import "fmt"

// UIMode describes how the application interacts with the user.
type UIMode int

const (
	UnknownUIMode UIMode = iota
	TUI
	CLI
)

// ParseUIMode maps a configured value to a UIMode. Empty selects the TUI.
func ParseUIMode(value string) (UIMode, error) {
	switch value {
	case "", "tui":
		return TUI, nil
	case "cli":
		return CLI, nil
	default:
		return UnknownUIMode, fmt.Errorf("unknown ui mode %q", value)
	}
}

func (m UIMode) String() string {
	switch m {
	case TUI:
		return "tui"
	case CLI:
		return "cli"
	default:
		return "unknown"
	}
}
