package appstate

import (
	"errors"
	"fmt"
	"sync"

	"avb/application/logging"
	"avb/domain/app"
)

var ErrNotInGame = errors.New("application is not in game")

// Transition is called after the application state changed.
type Transition func(from, to app.State)

// Machine holds the application state. Entering and leaving the game is driven
// by the session manager; the sub-state by the in-game controls.
type Machine struct {
	mu          sync.Mutex
	state       app.State
	entities    *Entities
	transitions []Transition
	logger      logging.Logger
}

func NewMachine(entities *Entities, logger logging.Logger) *Machine {
	return &Machine{
		state:    app.MainMenu(),
		entities: entities,
		logger:   logger,
	}
}

func (m *Machine) Current() app.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnTransition registers fn for every later state change.
func (m *Machine) OnTransition(fn Transition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, fn)
}

// EnterGame moves from MainMenu to InGame(Playing). It is a no-op when already in game.
func (m *Machine) EnterGame() {
	m.set(func(current app.State) (app.State, bool) {
		if current.IsInGame() {
			return current, false
		}
		return app.InGame(app.Playing), true
	})
}

// LeaveGame returns to MainMenu and despawns every session entity.
func (m *Machine) LeaveGame() {
	changed := m.set(func(current app.State) (app.State, bool) {
		return app.MainMenu(), current.IsInGame()
	})
	if !changed {
		return
	}
	if n := m.entities.DespawnAll(); n > 0 {
		m.logger.Printf("despawned %d in-game entities", n)
	}
}

func (m *Machine) SetSubState(sub app.GameSubState) error {
	if !sub.Valid() {
		return fmt.Errorf("unknown game sub-state %d", int(sub))
	}
	var err error
	m.set(func(current app.State) (app.State, bool) {
		currentSub, ok := current.SubState()
		if !ok {
			err = ErrNotInGame
			return current, false
		}
		return app.InGame(sub), currentSub != sub
	})
	return err
}

func (m *Machine) set(next func(app.State) (app.State, bool)) bool {
	m.mu.Lock()
	from := m.state
	to, changed := next(from)
	if !changed {
		m.mu.Unlock()
		return false
	}
	m.state = to
	transitions := append([]Transition(nil), m.transitions...)
	m.mu.Unlock()

	m.logger.Printf("application state %s -> %s", from, to)
	for _, fn := range transitions {
		fn(from, to)
	}
	return true
}
