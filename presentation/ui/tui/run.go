package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrSelectorClosed is returned when the selector quits without a choice.
var ErrSelectorClosed = errors.New("selector closed without a choice")

func runProgram(ctx context.Context, model tea.Model) error {
	program := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run terminal ui: %w", err)
	}
	return nil
}

// RunClient shows the client dashboard until the user quits or ctx is done.
func RunClient(ctx context.Context, controller ClientController, logs LogFeed) error {
	return runProgram(ctx, NewClientModel(ctx, controller, logs))
}

// RunServer shows the host dashboard until the user quits or ctx is done.
func RunServer(ctx context.Context, view ServerView, summary func() string, logs LogFeed) error {
	return runProgram(ctx, NewServerModel(ctx, view, summary, logs))
}

// Choose asks the user to pick one of options.
func Choose(placeholder string, options []string) (string, error) {
	program := tea.NewProgram(NewSelector(placeholder, options))
	result, err := program.Run()
	if err != nil {
		return "", fmt.Errorf("run selector: %w", err)
	}
	selector, ok := result.(Selector)
	if !ok || selector.Choice() == "" {
		return "", ErrSelectorClosed
	}
	return selector.Choice(), nil
}
