package app

import "fmt"

// GameSubState refines the InGame application state.
type GameSubState int

const (
	Playing GameSubState = iota
	Editing
	Paused
)

func (s GameSubState) String() string {
	switch s {
	case Playing:
		return "Playing"
	case Editing:
		return "Editing"
	case Paused:
		return "Paused"
	default:
		return fmt.Sprintf("GameSubState(%d)", int(s))
	}
}

// Valid reports whether s is one of the known sub-states.
func (s GameSubState) Valid() bool {
	return s >= Playing && s <= Paused
}

// State is the top-level application state: either MainMenu or InGame with a
// sub-state. The sub-state is only observable while InGame.
type State struct {
	inGame bool
	sub    GameSubState
}

func MainMenu() State {
	return State{}
}

func InGame(sub GameSubState) State {
	return State{inGame: true, sub: sub}
}

func (s State) IsMainMenu() bool {
	return !s.inGame
}

func (s State) IsInGame() bool {
	return s.inGame
}

// SubState returns the game sub-state and true while InGame, false otherwise.
func (s State) SubState() (GameSubState, bool) {
	if !s.inGame {
		return 0, false
	}
	return s.sub, true
}

func (s State) String() string {
	if !s.inGame {
		return "MainMenu"
	}
	return "InGame(" + s.sub.String() + ")"
}
