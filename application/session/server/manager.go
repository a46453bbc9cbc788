package server

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"avb/application/logging"
	"avb/application/session/events"
	"avb/domain/credential"
	"avb/domain/session"

	"github.com/google/uuid"
)

// Manager admits clients against a Policy and tracks their sessions.
type Manager struct {
	listener   Listener
	repository Repository
	publisher  events.Publisher
	logger     logging.Logger
	now        func() time.Time

	admitMu    sync.Mutex
	policy     Policy
	maxPlayers atomic.Int64
	rejected   atomic.Uint64

	started  atomic.Bool
	local    netip.AddrPort
	done     chan struct{}
	serveErr error
}

func NewManager(listener Listener, publisher events.Publisher, logger logging.Logger) *Manager {
	return &Manager{
		listener:   listener,
		repository: NewConcurrentRepository(NewDefaultRepository()),
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
		done:       make(chan struct{}),
	}
}

// Start binds the listening endpoint and serves in the background until ctx
// is done. A bind failure is returned and nothing is served.
func (m *Manager) Start(ctx context.Context, bind netip.AddrPort, policy Policy, maxPlayers uint32) error {
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	m.policy = policy
	m.maxPlayers.Store(int64(maxPlayers))

	local, err := m.listener.Bind(bind)
	if err != nil {
		close(m.done)
		return fmt.Errorf("%w %v: %w", ErrBindFailed, bind, err)
	}
	m.local = local
	m.logger.Printf("server listening on %v, max players %d", local, maxPlayers)

	go func() {
		defer close(m.done)
		m.serveErr = m.listener.Serve(ctx, m)
	}()
	return nil
}

// Wait blocks until serving stops and returns its error.
func (m *Manager) Wait() error {
	if !m.started.Load() {
		return nil
	}
	<-m.done
	if errors.Is(m.serveErr, context.Canceled) {
		return nil
	}
	return m.serveErr
}

func (m *Manager) LocalAddr() netip.AddrPort {
	return m.local
}

// Admit validates a connection request and registers the peer. Rejections are
// logged and published; sessions already admitted are never affected by them.
func (m *Manager) Admit(request Request) (*Peer, error) {
	peer, err := m.admit(request)
	if err != nil {
		m.rejected.Add(1)
		m.logger.Printf("rejected %v: %v", request.Address, err)
		m.publisher.Publish(session.ConnectionRejected{Address: request.Address, Reason: err})
		return nil, err
	}
	m.logger.Printf("client %d connected from %v, session %s", peer.ClientID(), peer.Address(), peer.ID())
	m.publisher.Publish(session.SessionEstablished{
		SessionID: peer.ID().String(),
		ClientID:  peer.ClientID(),
		Address:   peer.Address(),
		Mechanism: peer.Mechanism(),
	})
	return peer, nil
}

func (m *Manager) admit(request Request) (*Peer, error) {
	policy := m.policy
	if request.ProtocolID != policy.ProtocolID {
		return nil, fmt.Errorf("%w: client %d, server %d", ErrProtocolMismatch, request.ProtocolID, policy.ProtocolID)
	}
	if !policy.Allows(request.Mechanism) {
		return nil, fmt.Errorf("%w: %s", ErrMechanismNotAllowed, request.Mechanism)
	}
	if request.Proof == nil {
		return nil, fmt.Errorf("%w: no proof", ErrInvalidCredential)
	}

	var clientID uint64
	switch request.Mechanism {
	case credential.PreSharedKeyMechanism:
		claimed, err := request.Proof.Verify(policy.PreSharedKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
		}
		clientID = claimed
	case credential.SignedTokenMechanism:
		grant, err := policy.Tokens.Open(request.Token, policy.ProtocolID, m.now())
		if err != nil {
			if errors.Is(err, ErrProtocolMismatch) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
		}
		if policy.requiresAddress() && !grant.allows(policy.PublicAddress) {
			return nil, fmt.Errorf("%w: token not issued for %v", ErrInvalidCredential, policy.PublicAddress)
		}
		if _, err := request.Proof.Verify(grant.SessionKey); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
		}
		clientID = grant.ClientID
	}

	m.admitMu.Lock()
	defer m.admitMu.Unlock()

	// A session from the same address is only replaced once the new one is
	// certain to be admitted; rejections leave every session in place.
	replaced, _ := m.repository.GetByAddress(request.Address)
	if existing, err := m.repository.GetByClientID(clientID); err == nil && existing != replaced {
		return nil, fmt.Errorf("%w: client %d from %v", ErrDuplicateClient, clientID, existing.Address())
	}
	active := int64(m.repository.Count())
	if replaced != nil {
		active--
	}
	if limit := m.maxPlayers.Load(); active >= limit {
		return nil, fmt.Errorf("%w: %d/%d", ErrServerFull, m.repository.Count(), limit)
	}

	if replaced != nil {
		m.release(replaced, "replaced by a new session from the same address")
	}
	peer := NewPeer(clientID, request.Address, request.Mechanism)
	m.repository.Add(peer)
	return peer, nil
}

// Touch records activity for a session and reports whether it is known.
func (m *Manager) Touch(id uuid.UUID) bool {
	peer, err := m.repository.GetByID(id)
	if err != nil {
		return false
	}
	peer.TouchActivity()
	return true
}

// Release ends a session the listener already forgot.
func (m *Manager) Release(id uuid.UUID, reason string) {
	peer, err := m.repository.GetByID(id)
	if err != nil {
		return
	}
	m.release(peer, reason)
}

// Disconnect ends the session of the peer at addr and notifies it.
func (m *Manager) Disconnect(addr netip.AddrPort, reason string) error {
	peer, err := m.repository.GetByAddress(addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, addr)
	}
	m.listener.Kick(peer, reason)
	m.release(peer, reason)
	return nil
}

// ReapIdle disconnects every peer idle for longer than timeout.
func (m *Manager) ReapIdle(timeout time.Duration) int {
	deadline := m.now().Add(-timeout)
	reaped := 0
	for _, peer := range m.repository.All() {
		if peer.LastActivity().Before(deadline) {
			m.listener.Kick(peer, "idle timeout")
			m.release(peer, "idle timeout")
			reaped++
		}
	}
	return reaped
}

func (m *Manager) release(peer *Peer, reason string) {
	if !peer.closed.CompareAndSwap(false, true) {
		return
	}
	m.repository.Delete(peer)
	m.logger.Printf("session %s of client %d ended: %s", peer.ID(), peer.ClientID(), reason)
	m.publisher.Publish(session.SessionEnded{
		SessionID: peer.ID().String(),
		ClientID:  peer.ClientID(),
		Address:   peer.Address(),
		Reason:    reason,
	})
}

// SetMaxPlayers changes capacity for future admissions. Existing sessions
// above the new limit are kept.
func (m *Manager) SetMaxPlayers(n uint32) {
	if old := m.maxPlayers.Swap(int64(n)); old != int64(n) {
		m.logger.Printf("max players changed from %d to %d", old, n)
	}
}

func (m *Manager) MaxPlayers() int {
	return int(m.maxPlayers.Load())
}

func (m *Manager) ConnectionCount() int {
	return m.repository.Count()
}

// RejectedCount is the number of refused connection attempts since start.
func (m *Manager) RejectedCount() uint64 {
	return m.rejected.Load()
}

// Peers returns a snapshot of the admitted sessions.
func (m *Manager) Peers() []*Peer {
	return m.repository.All()
}
