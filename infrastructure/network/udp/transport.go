package udp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"avb/application/logging"
	"avb/application/session/client"
	"avb/domain/credential"
	"avb/domain/network"
	"avb/infrastructure/cryptography/connect_token"
	"avb/infrastructure/cryptography/handshake"

	"github.com/google/uuid"
)

var ErrServerDisconnected = errors.New("server closed the session")

// Transport opens client links to game servers over UDP.
type Transport struct {
	settings Settings
	dialer   UDPDialer
	logger   logging.Logger

	mu    sync.Mutex
	links map[uint64]context.CancelFunc
}

func NewTransport(settings Settings, dialer UDPDialer, logger logging.Logger) *Transport {
	return &Transport{
		settings: settings,
		dialer:   dialer,
		logger:   logger,
		links:    make(map[uint64]context.CancelFunc),
	}
}

func (t *Transport) Open(ctx context.Context, attempt client.Attempt, completions chan<- client.Completion) {
	linkCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.links[attempt.Generation] = cancel
	t.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			t.mu.Lock()
			delete(t.links, attempt.Generation)
			t.mu.Unlock()
		}()
		t.run(linkCtx, attempt, completions)
	}()
}

// Close ends the link of generation, telling the server when it was established.
func (t *Transport) Close(generation uint64) {
	t.mu.Lock()
	cancel, ok := t.links[generation]
	t.mu.Unlock()
	if ok {
		cancel()
	}
}

func deliver(ctx context.Context, completions chan<- client.Completion, c client.Completion) {
	select {
	case completions <- c:
	case <-ctx.Done():
	}
}

func (t *Transport) run(ctx context.Context, attempt client.Attempt, completions chan<- client.Completion) {
	reject := func(err error) {
		deliver(ctx, completions, client.Completion{Generation: attempt.Generation, Kind: client.Rejected, Err: err})
	}

	request, initiator, err := buildRequest(attempt.Credential)
	if err != nil {
		reject(err)
		return
	}

	conn, err := t.dialer.Dial(attempt.Address)
	if err != nil {
		reject(fmt.Errorf("failed to dial %v: %w", attempt.Address, err))
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	packets := make(chan []byte, 16)
	stop := make(chan struct{})
	defer close(stop)
	go readPackets(conn, packets, stop)

	session, keys, err := t.handshake(ctx, conn, attempt, request, initiator, packets)
	if err != nil {
		if ctx.Err() == nil {
			reject(err)
		}
		return
	}
	control, err := newControlCipher(session, keys.ClientToServer, keys.ServerToClient)
	keys.Zero()
	if err != nil {
		reject(err)
		return
	}

	deliver(ctx, completions, client.Completion{
		Generation: attempt.Generation,
		Kind:       client.Accepted,
		SessionID:  session.String(),
	})

	if err := t.maintain(ctx, conn, control, packets); err != nil {
		deliver(ctx, completions, client.Completion{Generation: attempt.Generation, Kind: client.Closed, Err: err})
	}
}

func buildRequest(cred credential.Credential) ([]byte, *handshake.Initiator, error) {
	var (
		req     connectionRequest
		key     [credential.KeySize]byte
		payload []byte
	)
	switch c := cred.(type) {
	case credential.PreSharedKey:
		req = connectionRequest{mechanism: c.Mechanism(), protocolID: c.ProtocolID}
		key = c.Key
		payload = binary.BigEndian.AppendUint64(nil, c.ClientID)
	case credential.SignedToken:
		token, err := connect_token.Parse(c.Token)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", credential.ErrInvalidCredentialInput, err)
		}
		req = connectionRequest{mechanism: c.Mechanism(), protocolID: token.ProtocolID, token: c.Token}
		key = token.ClientToServerKey
	default:
		return nil, nil, fmt.Errorf("%w: unsupported credential %T", credential.ErrInvalidCredentialInput, cred)
	}

	initiator, err := handshake.NewInitiator(req.protocolID, req.mechanism, key)
	if err != nil {
		return nil, nil, err
	}
	msg, err := initiator.Request(payload)
	if err != nil {
		return nil, nil, err
	}
	req.handshake = msg
	return req.marshal(), initiator, nil
}

func (t *Transport) handshake(
	ctx context.Context,
	conn *net.UDPConn,
	attempt client.Attempt,
	request []byte,
	initiator *handshake.Initiator,
	packets <-chan []byte,
) (uuid.UUID, handshake.Keys, error) {
	retry := time.NewTicker(t.settings.RetryInterval)
	defer retry.Stop()
	timeout := time.NewTimer(t.settings.HandshakeTimeout)
	defer timeout.Stop()

	var (
		lastErr error = context.DeadlineExceeded
		denied  error
	)
	send := func() {
		if _, err := conn.Write(request); err != nil {
			lastErr = err
		}
	}
	send()

	for {
		select {
		case <-ctx.Done():
			return uuid.UUID{}, handshake.Keys{}, ctx.Err()
		case <-timeout.C:
			if denied != nil {
				return uuid.UUID{}, handshake.Keys{}, denied
			}
			return uuid.UUID{}, handshake.Keys{}, network.NewErrTimeout("handshake", attempt.Address.String(), lastErr)
		case <-retry.C:
			send()
		case packet, ok := <-packets:
			if !ok {
				return uuid.UUID{}, handshake.Keys{}, net.ErrClosed
			}
			switch packet[0] {
			case packetConnectionDenied:
				// Denials are not authenticated, so one only decides the
				// outcome if no acceptance arrives before the timeout.
				if len(packet) == 2 {
					denied = denyReason(packet[1]).Err()
				}
			case packetConnectionAccepted:
				payload, keys, err := initiator.Finish(packet[1:])
				if err != nil {
					return uuid.UUID{}, handshake.Keys{}, err
				}
				if len(payload) != len(uuid.UUID{}) {
					keys.Zero()
					return uuid.UUID{}, handshake.Keys{}, ErrMalformedPacket
				}
				return uuid.UUID(payload), keys, nil
			}
		}
	}
}

// maintain keeps an established link alive until ctx is done (nil is
// returned after telling the server) or the link is lost.
func (t *Transport) maintain(ctx context.Context, conn *net.UDPConn, control *controlCipher, packets <-chan []byte) error {
	keepAlive := time.NewTicker(t.settings.KeepAliveInterval)
	defer keepAlive.Stop()
	lastReceived := time.Now()

	for {
		select {
		case <-ctx.Done():
			for i := 0; i < disconnectRedundancy; i++ {
				_, _ = conn.Write(control.seal(packetDisconnect))
			}
			return nil
		case <-keepAlive.C:
			if time.Since(lastReceived) > t.settings.LinkTimeout {
				return network.NewErrTimeout("link", conn.RemoteAddr().String(), context.DeadlineExceeded)
			}
			if _, err := conn.Write(control.seal(packetKeepAlive)); err != nil {
				t.logger.Printf("failed to send keepalive: %v", err)
			}
		case packet, ok := <-packets:
			if !ok {
				return net.ErrClosed
			}
			kind, err := control.open(packet)
			if err != nil {
				continue
			}
			switch kind {
			case packetKeepAlive:
				lastReceived = time.Now()
			case packetDisconnect:
				return ErrServerDisconnected
			}
		}
	}
}

// readPackets forwards datagrams until conn is closed or stop is closed.
func readPackets(conn *net.UDPConn, packets chan<- []byte, stop <-chan struct{}) {
	defer close(packets)
	buf := make([]byte, maxPacketSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-stop:
				return
			default:
			}
			// connected UDP sockets surface ICMP errors on read; keep going
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if n == 0 {
			continue
		}
		select {
		case packets <- append([]byte(nil), buf[:n]...):
		case <-stop:
			return
		}
	}
}
