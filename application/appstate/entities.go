package appstate

import (
	"errors"
	"fmt"
	"sync"
)

var ErrDuplicateEntity = errors.New("entity listed more than once")

// Entity is a handle to an in-game entity tied to the current session.
type Entity uint64

// Entities tracks the entities that must disappear when the session ends.
type Entities struct {
	mu   sync.Mutex
	next Entity
	live map[Entity]struct{}
}

func NewEntities() *Entities {
	return &Entities{live: make(map[Entity]struct{})}
}

func (e *Entities) Spawn() Entity {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	e.live[e.next] = struct{}{}
	return e.next
}

// Despawn removes the given entities. Handles that are already gone are
// skipped. A handle listed twice fails the whole request and removes nothing.
func (e *Entities) Despawn(handles ...Entity) error {
	seen := make(map[Entity]struct{}, len(handles))
	for _, h := range handles {
		if _, dup := seen[h]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateEntity, h)
		}
		seen[h] = struct{}{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, h := range handles {
		delete(e.live, h)
	}
	return nil
}

// DespawnAll removes every live entity and reports how many were removed.
func (e *Entities) DespawnAll() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.live)
	clear(e.live)
	return n
}

func (e *Entities) Contains(h Entity) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.live[h]
	return ok
}

func (e *Entities) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.live)
}
