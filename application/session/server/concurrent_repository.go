package server

import (
	"net/netip"
	"sync"

	"github.com/google/uuid"
)

type ConcurrentRepository struct {
	mu         sync.RWMutex
	repository Repository
}

func NewConcurrentRepository(repository Repository) Repository {
	return &ConcurrentRepository{
		repository: repository,
	}
}

func (c *ConcurrentRepository) Add(peer *Peer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repository.Add(peer)
}

func (c *ConcurrentRepository) Delete(peer *Peer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repository.Delete(peer)
}

func (c *ConcurrentRepository) GetByID(id uuid.UUID) (*Peer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.repository.GetByID(id)
}

func (c *ConcurrentRepository) GetByAddress(addr netip.AddrPort) (*Peer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.repository.GetByAddress(addr)
}

func (c *ConcurrentRepository) GetByClientID(clientID uint64) (*Peer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.repository.GetByClientID(clientID)
}

func (c *ConcurrentRepository) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.repository.Count()
}

func (c *ConcurrentRepository) All() []*Peer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.repository.All()
}
