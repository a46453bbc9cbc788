package mode_selection

import (
	"avb/domain/mode"
	"avb/presentation/ui/tui"
)

// Chooser asks the user to pick one of options.
type Chooser func(placeholder string, options []string) (string, error)

// TeaAppMode falls back to an interactive selector when no mode argument is given.
type TeaAppMode struct {
	arguments []string
	choose    Chooser
}

func NewTeaAppMode(arguments []string) AppMode {
	return &TeaAppMode{
		arguments: arguments,
		choose:    tui.Choose,
	}
}

func (p *TeaAppMode) Mode() (mode.Mode, error) {
	if len(p.arguments) == 0 {
		return mode.Unknown, mode.NewInvalidExecPathProvided()
	}
	if len(p.arguments) >= 2 {
		return NewArgsAppMode(p.arguments).Mode()
	}

	choice, err := p.choose("Please select mode", []string{"client (join a game)", "server (host a game)"})
	if err != nil || choice == "" {
		return mode.Unknown, mode.NewInvalidModeProvided("")
	}
	return parse(choice)
}
