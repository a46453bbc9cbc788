package mode_selection

import (
	"strings"

	"avb/domain/mode"
)

// ArgsAppMode reads the mode from the first command line argument.
type ArgsAppMode struct {
	arguments []string
}

func NewArgsAppMode(arguments []string) AppMode {
	return &ArgsAppMode{
		arguments: arguments,
	}
}

func (a *ArgsAppMode) Mode() (mode.Mode, error) {
	if len(a.arguments) == 0 {
		return mode.Unknown, mode.NewInvalidExecPathProvided()
	}

	if len(a.arguments) < 2 {
		return mode.Unknown, mode.NewNoModeProvided()
	}

	return parse(a.arguments[1])
}

func parse(argument string) (mode.Mode, error) {
	switch m := strings.TrimSpace(strings.ToLower(argument)); m {
	case "c", "client":
		return mode.Client, nil
	case "s", "server":
		return mode.Server, nil
	case "v", "version", "--version":
		return mode.Version, nil
	default:
		return mode.Unknown, mode.NewInvalidModeProvided(m)
	}
}
