package client

import (
	"context"
	"fmt"
	"net/netip"
	"sync"

	"avb/application/appstate"
	"avb/application/logging"
	"avb/application/session/events"
	"avb/domain/credential"
	"avb/domain/session"
)

const completionBuffer = 16

// Snapshot is a read-only view of the session endpoint.
type Snapshot struct {
	State      session.ConnectionState
	Target     netip.AddrPort
	Generation uint64
	SessionID  string
	// ClientID is the identity presented with a pre-shared key, zero otherwise.
	ClientID    uint64
	HasEndpoint bool
}

type endpoint struct {
	state      session.ConnectionState
	generation uint64
	credential credential.Credential
	sessionID  string
	cancel     context.CancelFunc
}

// Manager owns the single session endpoint of the client process and drives
// the application state from join, leave and transport outcomes.
type Manager struct {
	mu          sync.Mutex
	endpoint    *endpoint
	target      netip.AddrPort
	lastFailure error

	completions chan Completion
	transport   Transport
	machine     *appstate.Machine
	publisher   events.Publisher
	logger      logging.Logger
}

func NewManager(
	transport Transport,
	machine *appstate.Machine,
	publisher events.Publisher,
	logger logging.Logger,
) *Manager {
	return &Manager{
		completions: make(chan Completion, completionBuffer),
		transport:   transport,
		machine:     machine,
		publisher:   publisher,
		logger:      logger,
	}
}

// Spawn creates the idle endpoint. Only one endpoint may exist per process.
func (m *Manager) Spawn() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.endpoint != nil {
		m.logger.Printf("refusing to spawn a second session endpoint")
		return ErrEndpointAlreadyExists
	}
	m.endpoint = &endpoint{state: session.Idle}
	return nil
}

// RequestJoin starts authenticating against address with cred. It returns
// immediately; the outcome is applied by a later Tick.
func (m *Manager) RequestJoin(cred credential.Credential, address netip.AddrPort) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ep := m.endpoint
	if ep == nil {
		return ErrNoEndpoint
	}
	if ep.state != session.Idle {
		m.logger.Printf("join to %v ignored: endpoint is %s", address, ep.state)
		return fmt.Errorf("%w: %s", ErrEndpointAlreadyActive, ep.state)
	}
	if cred == nil {
		return fmt.Errorf("%w: no credential", credential.ErrInvalidCredentialInput)
	}
	if !address.IsValid() || address.Port() == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTarget, address)
	}

	m.setTarget(address)
	ep.credential = cred
	ep.generation++
	ep.state = session.Authenticating
	m.lastFailure = nil

	ctx, cancel := context.WithCancel(context.Background())
	ep.cancel = cancel

	m.logger.Printf("joining %v using %s", address, cred.Mechanism())
	m.publisher.Publish(session.JoinRequested{Address: address, Credential: cred})
	m.transport.Open(ctx, Attempt{
		Generation: ep.generation,
		Address:    address,
		Credential: cred,
	}, m.completions)
	return nil
}

// RequestLeave tears the session down. Leaving while Idle is a no-op.
func (m *Manager) RequestLeave() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ep := m.endpoint
	if ep == nil {
		return ErrNoEndpoint
	}
	if ep.state == session.Idle {
		return nil
	}

	address := m.target
	m.publisher.Publish(session.LeaveRequested{Address: address})
	m.clearTarget()
	m.transport.Close(ep.generation)
	m.reset(ep)
	m.machine.LeaveGame()
	m.logger.Printf("left %v", address)
	m.publisher.Publish(session.SessionClosed{Address: address})
	return nil
}

// Tick applies every transport outcome received since the previous tick.
func (m *Manager) Tick() {
	for {
		select {
		case c := <-m.completions:
			m.complete(c)
		default:
			return
		}
	}
}

func (m *Manager) complete(c Completion) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ep := m.endpoint
	if ep == nil || c.Generation != ep.generation {
		m.logger.Printf("dropping stale %s completion for generation %d", c.Kind, c.Generation)
		return
	}

	address := m.target
	switch {
	case c.Kind == Accepted && ep.state == session.Authenticating:
		ep.state = session.Connected
		ep.sessionID = c.SessionID
		m.machine.EnterGame()
		m.logger.Printf("joined %v, session %s", address, c.SessionID)
		m.publisher.Publish(session.JoinSucceeded{Address: address, SessionID: c.SessionID})
	case c.Kind != Accepted && ep.state == session.Authenticating:
		reason := fmt.Errorf("%w: %w", ErrAuthenticationFailed, c.Err)
		m.lastFailure = reason
		m.clearTarget()
		m.reset(ep)
		m.logger.Printf("join to %v failed: %v", address, reason)
		m.publisher.Publish(session.JoinFailed{Address: address, Reason: reason})
	case c.Kind == Closed && ep.state == session.Connected:
		m.clearTarget()
		m.reset(ep)
		m.machine.LeaveGame()
		m.logger.Printf("session with %v closed: %v", address, c.Err)
		m.publisher.Publish(session.SessionClosed{Address: address})
	default:
		m.logger.Printf("ignoring %s completion while %s", c.Kind, ep.state)
	}
}

// reset returns ep to Idle, detaching its credential. The generation moves on
// so that completions of the abandoned attempt are recognised as stale.
func (m *Manager) reset(ep *endpoint) {
	if ep.cancel != nil {
		ep.cancel()
		ep.cancel = nil
	}
	ep.state = session.Idle
	ep.credential = nil
	ep.sessionID = ""
	ep.generation++
}

func (m *Manager) setTarget(address netip.AddrPort) {
	m.target = address
}

func (m *Manager) clearTarget() {
	m.target = netip.AddrPort{}
}

// Target returns the server the endpoint is joining or joined.
func (m *Manager) Target() (netip.AddrPort, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.target, m.target.IsValid()
}

// LastFailure returns the reason of the most recent failed join, if any.
func (m *Manager) LastFailure() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFailure
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.endpoint == nil {
		return Snapshot{}
	}
	snapshot := Snapshot{
		State:       m.endpoint.state,
		Target:      m.target,
		Generation:  m.endpoint.generation,
		SessionID:   m.endpoint.sessionID,
		HasEndpoint: true,
	}
	if psk, ok := m.endpoint.credential.(credential.PreSharedKey); ok {
		snapshot.ClientID = psk.ClientID
	}
	return snapshot
}

// Credential returns the credential attached to the endpoint, nil when Idle.
func (m *Manager) Credential() credential.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.endpoint == nil {
		return nil
	}
	return m.endpoint.credential
}
