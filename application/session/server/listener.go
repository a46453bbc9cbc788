package server

import (
	"context"
	"net/netip"

	"github.com/google/uuid"
)

// Listener is the network side of the server: it receives connection
// requests and control packets and hands them to an Acceptor.
type Listener interface {
	// Bind opens the listening endpoint and returns the bound address.
	Bind(address netip.AddrPort) (netip.AddrPort, error)
	// Serve processes packets until ctx is done.
	Serve(ctx context.Context, acceptor Acceptor) error
	// Kick tells peer its session is over and forgets it.
	Kick(peer *Peer, reason string)
}

// Acceptor is implemented by Manager.
type Acceptor interface {
	Admit(request Request) (*Peer, error)
	Touch(id uuid.UUID) bool
	Release(id uuid.UUID, reason string)
}
