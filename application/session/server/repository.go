package server

import (
	"net/netip"

	"github.com/google/uuid"
)

type Repository interface {
	// Add adds peer to the repository
	Add(peer *Peer)
	// Delete removes peer and marks it closed
	Delete(peer *Peer)
	GetByID(id uuid.UUID) (*Peer, error)
	GetByAddress(addr netip.AddrPort) (*Peer, error)
	GetByClientID(clientID uint64) (*Peer, error)
	Count() int
	All() []*Peer
}

type DefaultRepository struct {
	byID       map[uuid.UUID]*Peer
	byAddress  map[netip.AddrPort]*Peer
	byClientID map[uint64]*Peer
}

func NewDefaultRepository() Repository {
	return &DefaultRepository{
		byID:       make(map[uuid.UUID]*Peer),
		byAddress:  make(map[netip.AddrPort]*Peer),
		byClientID: make(map[uint64]*Peer),
	}
}

func (s *DefaultRepository) Add(peer *Peer) {
	s.byID[peer.ID()] = peer
	s.byAddress[peer.Address()] = peer
	s.byClientID[peer.ClientID()] = peer
}

func (s *DefaultRepository) Delete(peer *Peer) {
	peer.markClosed()
	if s.byID[peer.ID()] != peer {
		return
	}
	delete(s.byID, peer.ID())
	if s.byAddress[peer.Address()] == peer {
		delete(s.byAddress, peer.Address())
	}
	if s.byClientID[peer.ClientID()] == peer {
		delete(s.byClientID, peer.ClientID())
	}
}

func (s *DefaultRepository) GetByID(id uuid.UUID) (*Peer, error) {
	value, found := s.byID[id]
	if !found {
		return nil, ErrNotFound
	}
	return value, nil
}

func (s *DefaultRepository) GetByAddress(addr netip.AddrPort) (*Peer, error) {
	value, found := s.byAddress[canonical(addr)]
	if !found {
		return nil, ErrNotFound
	}
	return value, nil
}

func (s *DefaultRepository) GetByClientID(clientID uint64) (*Peer, error) {
	value, found := s.byClientID[clientID]
	if !found {
		return nil, ErrNotFound
	}
	return value, nil
}

func (s *DefaultRepository) Count() int {
	return len(s.byID)
}

func (s *DefaultRepository) All() []*Peer {
	peers := make([]*Peer, 0, len(s.byID))
	for _, p := range s.byID {
		peers = append(peers, p)
	}
	return peers
}
