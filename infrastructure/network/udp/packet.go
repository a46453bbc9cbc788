package udp

import (
	"encoding/binary"
	"errors"
	"fmt"

	"avb/application/session/server"
	"avb/domain/credential"
)

const (
	packetConnectionRequest  byte = 1
	packetConnectionAccepted byte = 2
	packetConnectionDenied   byte = 3
	packetKeepAlive          byte = 4
	packetDisconnect         byte = 5
)

// maxPacketSize bounds every datagram: a request carries a full connect token.
const maxPacketSize = 4096

const requestHeaderSize = 1 + 1 + 8 + 2

var ErrMalformedPacket = errors.New("malformed packet")

// connectionRequest layout:
//
//	[type][mechanism][protocol id u64][token length u16][token][handshake message]
type connectionRequest struct {
	mechanism  credential.Mechanism
	protocolID uint64
	token      []byte
	handshake  []byte
}

func (r connectionRequest) marshal() []byte {
	b := make([]byte, 0, requestHeaderSize+len(r.token)+len(r.handshake))
	b = append(b, packetConnectionRequest, byte(r.mechanism))
	b = binary.BigEndian.AppendUint64(b, r.protocolID)
	b = binary.BigEndian.AppendUint16(b, uint16(len(r.token)))
	b = append(b, r.token...)
	return append(b, r.handshake...)
}

func parseConnectionRequest(b []byte) (connectionRequest, error) {
	if len(b) < requestHeaderSize || b[0] != packetConnectionRequest {
		return connectionRequest{}, ErrMalformedPacket
	}
	tokenLen := int(binary.BigEndian.Uint16(b[10:12]))
	if tokenLen > credential.TokenSize || len(b) < requestHeaderSize+tokenLen+1 {
		return connectionRequest{}, ErrMalformedPacket
	}
	rest := b[requestHeaderSize:]
	return connectionRequest{
		mechanism:  credential.Mechanism(b[1]),
		protocolID: binary.BigEndian.Uint64(b[2:10]),
		token:      append([]byte(nil), rest[:tokenLen]...),
		handshake:  append([]byte(nil), rest[tokenLen:]...),
	}, nil
}

type denyReason byte

const (
	denyUnknown denyReason = iota
	denyProtocolMismatch
	denyMechanismNotAllowed
	denyInvalidCredential
	denyServerFull
	denyDuplicateClient
)

var ErrDenied = errors.New("connection denied")

func denyReasonFor(err error) denyReason {
	switch {
	case errors.Is(err, server.ErrProtocolMismatch):
		return denyProtocolMismatch
	case errors.Is(err, server.ErrMechanismNotAllowed):
		return denyMechanismNotAllowed
	case errors.Is(err, server.ErrInvalidCredential):
		return denyInvalidCredential
	case errors.Is(err, server.ErrServerFull):
		return denyServerFull
	case errors.Is(err, server.ErrDuplicateClient):
		return denyDuplicateClient
	default:
		return denyUnknown
	}
}

// Err maps a reason received from the server back to the server's sentinel.
func (r denyReason) Err() error {
	switch r {
	case denyProtocolMismatch:
		return server.ErrProtocolMismatch
	case denyMechanismNotAllowed:
		return server.ErrMechanismNotAllowed
	case denyInvalidCredential:
		return server.ErrInvalidCredential
	case denyServerFull:
		return server.ErrServerFull
	case denyDuplicateClient:
		return server.ErrDuplicateClient
	default:
		return fmt.Errorf("%w: reason %d", ErrDenied, byte(r))
	}
}

func deniedPacket(reason denyReason) []byte {
	return []byte{packetConnectionDenied, byte(reason)}
}

func acceptedPacket(handshake []byte) []byte {
	return append([]byte{packetConnectionAccepted}, handshake...)
}
