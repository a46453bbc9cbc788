package udp

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"avb/application/logging"
	"avb/application/session/server"
	"avb/domain/credential"
	"avb/infrastructure/cryptography/handshake"

	"github.com/google/uuid"
)

type serverSession struct {
	peerID   uuid.UUID
	control  *controlCipher
	request  []byte
	response []byte
}

// Listener is the UDP side of the game server.
type Listener struct {
	settings Settings
	logger   logging.Logger
	conn     *net.UDPConn

	mu       sync.Mutex
	sessions map[netip.AddrPort]*serverSession
}

func NewListener(settings Settings, logger logging.Logger) *Listener {
	return &Listener{
		settings: settings,
		logger:   logger,
		sessions: make(map[netip.AddrPort]*serverSession),
	}
}

func (l *Listener) Bind(address netip.AddrPort) (netip.AddrPort, error) {
	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(address))
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("failed to listen on %v: %w", address, err)
	}
	l.conn = conn
	return conn.LocalAddr().(*net.UDPAddr).AddrPort(), nil
}

func (l *Listener) Serve(ctx context.Context, acceptor server.Acceptor) error {
	if l.conn == nil {
		return errors.New("listener is not bound")
	}
	stop := context.AfterFunc(ctx, func() {
		_ = l.conn.Close()
	})
	defer stop()

	go l.keepAlive(ctx)

	buf := make([]byte, maxPacketSize)
	for {
		n, from, err := l.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.logger.Printf("failed to read from udp: %v", err)
			continue
		}
		if n == 0 {
			continue
		}
		from = netip.AddrPortFrom(from.Addr().Unmap(), from.Port())
		packet := buf[:n]
		switch packet[0] {
		case packetConnectionRequest:
			l.handleRequest(acceptor, from, packet)
		case packetKeepAlive, packetDisconnect:
			l.handleControl(acceptor, from, packet)
		}
	}
}

func (l *Listener) handleRequest(acceptor server.Acceptor, from netip.AddrPort, packet []byte) {
	request, err := parseConnectionRequest(packet)
	if err != nil {
		l.logger.Printf("dropping malformed request from %v", from)
		return
	}

	// a retransmitted request gets the answer it already got
	l.mu.Lock()
	existing, ok := l.sessions[from]
	l.mu.Unlock()
	if ok && bytes.Equal(existing.request, request.handshake) {
		l.write(existing.response, from)
		return
	}

	proof := &handshakeProof{
		protocolID: request.protocolID,
		mechanism:  request.mechanism,
		message:    request.handshake,
	}
	peer, err := acceptor.Admit(server.Request{
		Address:    from,
		ProtocolID: request.protocolID,
		Mechanism:  request.mechanism,
		Token:      request.token,
		Proof:      proof,
	})
	if err != nil {
		l.write(deniedPacket(denyReasonFor(err)), from)
		return
	}

	id := peer.ID()
	response, keys, err := proof.finish(id[:])
	if err != nil {
		l.logger.Printf("failed to complete handshake with %v: %v", from, err)
		acceptor.Release(id, "handshake failed")
		return
	}
	control, err := newControlCipher(id, keys.ServerToClient, keys.ClientToServer)
	keys.Zero()
	if err != nil {
		acceptor.Release(id, "handshake failed")
		return
	}

	accepted := acceptedPacket(response)
	l.mu.Lock()
	l.sessions[from] = &serverSession{
		peerID:   id,
		control:  control,
		request:  request.handshake,
		response: accepted,
	}
	l.mu.Unlock()
	l.write(accepted, from)
}

func (l *Listener) handleControl(acceptor server.Acceptor, from netip.AddrPort, packet []byte) {
	l.mu.Lock()
	s, ok := l.sessions[from]
	l.mu.Unlock()
	if !ok {
		return
	}
	kind, err := s.control.open(packet)
	if err != nil {
		return
	}
	switch kind {
	case packetKeepAlive:
		if !acceptor.Touch(s.peerID) {
			l.forget(from, s)
		}
	case packetDisconnect:
		if l.forget(from, s) {
			acceptor.Release(s.peerID, "client disconnected")
		}
	}
}

// Kick sends a disconnect to peer and forgets its session.
func (l *Listener) Kick(peer *server.Peer, _ string) {
	l.mu.Lock()
	s, ok := l.sessions[peer.Address()]
	if ok && s.peerID == peer.ID() {
		delete(l.sessions, peer.Address())
	}
	l.mu.Unlock()
	if !ok || s.peerID != peer.ID() {
		return
	}
	for i := 0; i < disconnectRedundancy; i++ {
		l.write(s.control.seal(packetDisconnect), peer.Address())
	}
}

func (l *Listener) forget(from netip.AddrPort, s *serverSession) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sessions[from] != s {
		return false
	}
	delete(l.sessions, from)
	return true
}

func (l *Listener) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(l.settings.KeepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.mu.Lock()
			targets := make(map[netip.AddrPort]*serverSession, len(l.sessions))
			for addr, s := range l.sessions {
				targets[addr] = s
			}
			l.mu.Unlock()
			for addr, s := range targets {
				l.write(s.control.seal(packetKeepAlive), addr)
			}
		}
	}
}

func (l *Listener) write(packet []byte, to netip.AddrPort) {
	if _, err := l.conn.WriteToUDPAddrPort(packet, to); err != nil && !errors.Is(err, net.ErrClosed) {
		l.logger.Printf("failed to write to %v: %v", to, err)
	}
}

// handshakeProof runs the responder side of the handshake once the policy
// has resolved which key the peer must hold.
type handshakeProof struct {
	protocolID uint64
	mechanism  credential.Mechanism
	message    []byte
	responder  *handshake.Responder
}

func (p *handshakeProof) Verify(key [credential.KeySize]byte) (uint64, error) {
	if p.responder != nil {
		return 0, handshake.ErrOutOfOrder
	}
	responder, err := handshake.NewResponder(p.protocolID, p.mechanism, key)
	if err != nil {
		return 0, err
	}
	payload, err := responder.Accept(p.message)
	if err != nil {
		return 0, err
	}
	p.responder = responder
	switch len(payload) {
	case 0:
		return 0, nil
	case 8:
		return binary.BigEndian.Uint64(payload), nil
	default:
		return 0, fmt.Errorf("%w: unexpected request payload", ErrMalformedPacket)
	}
}

func (p *handshakeProof) finish(payload []byte) ([]byte, handshake.Keys, error) {
	if p.responder == nil {
		return nil, handshake.Keys{}, handshake.ErrOutOfOrder
	}
	return p.responder.Finish(payload)
}
