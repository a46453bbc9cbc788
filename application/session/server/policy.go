package server

import (
	"net/netip"
	"time"

	"avb/domain/credential"
	"avb/domain/network"
)

// Policy decides which credentials the server accepts.
type Policy struct {
	ProtocolID         uint64
	AcceptPreSharedKey bool
	PreSharedKey       [credential.KeySize]byte
	AcceptSignedToken  bool
	Tokens             TokenOpener
	// PublicAddress, when concrete, must be listed in a presented token.
	PublicAddress netip.AddrPort
}

func (p Policy) Allows(mechanism credential.Mechanism) bool {
	switch mechanism {
	case credential.PreSharedKeyMechanism:
		return p.AcceptPreSharedKey
	case credential.SignedTokenMechanism:
		return p.AcceptSignedToken && p.Tokens != nil
	default:
		return false
	}
}

func (p Policy) requiresAddress() bool {
	return network.IsConcrete(p.PublicAddress)
}

// TokenGrant is what a valid signed token entitles its bearer to.
type TokenGrant struct {
	ClientID        uint64
	SessionKey      [credential.KeySize]byte
	ServerAddresses []netip.AddrPort
}

func (g TokenGrant) allows(addr netip.AddrPort) bool {
	for _, a := range g.ServerAddresses {
		if canonical(a) == canonical(addr) {
			return true
		}
	}
	return false
}

// TokenOpener validates signed tokens. Errors wrap ErrProtocolMismatch when
// the token was issued for another protocol.
type TokenOpener interface {
	Open(token []byte, protocolID uint64, now time.Time) (TokenGrant, error)
}

// Request is a connection attempt as presented by a remote peer.
type Request struct {
	Address    netip.AddrPort
	ProtocolID uint64
	Mechanism  credential.Mechanism
	Token      []byte
	Proof      Proof
}

// Proof demonstrates that the peer holds the session key. Verify returns the
// client id claimed inside the authenticated message.
type Proof interface {
	Verify(key [credential.KeySize]byte) (claimedClientID uint64, err error)
}
