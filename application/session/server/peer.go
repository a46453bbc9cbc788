package server

import (
	"net/netip"
	"sync/atomic"
	"time"

	"avb/domain/credential"

	"github.com/google/uuid"
)

// Peer is an admitted client session, the unit stored in Repository.
type Peer struct {
	id            uuid.UUID
	clientID      uint64
	address       netip.AddrPort
	mechanism     credential.Mechanism
	establishedAt time.Time
	closed        atomic.Bool
	lastActivity  atomic.Int64 // unix seconds
}

func NewPeer(clientID uint64, address netip.AddrPort, mechanism credential.Mechanism) *Peer {
	now := time.Now()
	p := &Peer{
		id:            uuid.New(),
		clientID:      clientID,
		address:       canonical(address),
		mechanism:     mechanism,
		establishedAt: now,
	}
	p.lastActivity.Store(now.Unix())
	return p
}

func (p *Peer) ID() uuid.UUID                   { return p.id }
func (p *Peer) ClientID() uint64                { return p.clientID }
func (p *Peer) Address() netip.AddrPort         { return p.address }
func (p *Peer) Mechanism() credential.Mechanism { return p.mechanism }
func (p *Peer) EstablishedAt() time.Time        { return p.establishedAt }

// IsClosed reports whether the peer was removed from its repository.
func (p *Peer) IsClosed() bool {
	return p.closed.Load()
}

// TouchActivity records that an authenticated packet arrived from the peer.
func (p *Peer) TouchActivity() {
	p.lastActivity.Store(time.Now().Unix())
}

func (p *Peer) LastActivity() time.Time {
	return time.Unix(p.lastActivity.Load(), 0)
}

// SetLastActivityForTest overrides lastActivity (unix seconds) for testing.
// Must not be used in production code.
func (p *Peer) SetLastActivityForTest(unix int64) {
	p.lastActivity.Store(unix)
}

func (p *Peer) markClosed() {
	p.closed.Store(true)
}

func canonical(ap netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}
