package handshake

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"avb/domain/credential"
	"avb/infrastructure/cryptography/mem"

	noiselib "github.com/flynn/noise"
)

var cipherSuite = noiselib.NewCipherSuite(noiselib.DH25519, noiselib.CipherChaChaPoly, noiselib.HashSHA256)

const prologueLabel = "avb session v1"

// Keys are the directional session keys of a completed handshake.
type Keys struct {
	ClientToServer [32]byte
	ServerToClient [32]byte
}

func (k *Keys) Zero() {
	mem.WipeKeys(&k.ClientToServer, &k.ServerToClient)
}

// prologue binds the protocol id and credential mechanism into the transcript,
// so a peer speaking another protocol or mechanism fails the first message.
func prologue(protocolID uint64, mechanism credential.Mechanism) []byte {
	p := make([]byte, 0, len(prologueLabel)+9)
	p = append(p, prologueLabel...)
	p = binary.BigEndian.AppendUint64(p, protocolID)
	return append(p, byte(mechanism))
}

func newState(initiator bool, protocolID uint64, mechanism credential.Mechanism, psk [32]byte) (*noiselib.HandshakeState, error) {
	hs, err := noiselib.NewHandshakeState(noiselib.Config{
		CipherSuite:           cipherSuite,
		Random:                rand.Reader,
		Pattern:               noiselib.HandshakeNN,
		Initiator:             initiator,
		Prologue:              prologue(protocolID, mechanism),
		PresharedKey:          psk[:],
		PresharedKeyPlacement: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("noise: handshake state: %w", err)
	}
	return hs, nil
}

func keysFrom(cs1, cs2 *noiselib.CipherState) (Keys, error) {
	if cs1 == nil || cs2 == nil {
		return Keys{}, fmt.Errorf("noise: handshake not complete")
	}
	return Keys{
		ClientToServer: cs1.UnsafeKey(),
		ServerToClient: cs2.UnsafeKey(),
	}, nil
}

// Initiator is the client side of a two-message NNpsk0 handshake.
type Initiator struct {
	hs      *noiselib.HandshakeState
	request []byte
	done    bool
}

func NewInitiator(protocolID uint64, mechanism credential.Mechanism, psk [32]byte) (*Initiator, error) {
	hs, err := newState(true, protocolID, mechanism, psk)
	if err != nil {
		return nil, err
	}
	return &Initiator{hs: hs}, nil
}

// Request returns the first handshake message carrying payload. Later calls
// return the same bytes so the message can be retransmitted.
func (i *Initiator) Request(payload []byte) ([]byte, error) {
	if i.request != nil {
		return i.request, nil
	}
	msg, _, _, err := i.hs.WriteMessage(nil, payload)
	if err != nil {
		return nil, fmt.Errorf("noise: write request: %w", err)
	}
	i.request = msg
	return msg, nil
}

// Finish consumes the responder's message and returns its payload and the session keys.
func (i *Initiator) Finish(response []byte) ([]byte, Keys, error) {
	if i.request == nil || i.done {
		return nil, Keys{}, ErrOutOfOrder
	}
	payload, cs1, cs2, err := i.hs.ReadMessage(nil, response)
	if err != nil {
		return nil, Keys{}, ErrHandshakeFailed
	}
	keys, err := keysFrom(cs1, cs2)
	if err != nil {
		return nil, Keys{}, err
	}
	i.done = true
	mem.Wipe(i.hs.LocalEphemeral().Private)
	return payload, keys, nil
}

// Responder is the server side of a two-message NNpsk0 handshake.
type Responder struct {
	hs       *noiselib.HandshakeState
	accepted bool
	done     bool
}

func NewResponder(protocolID uint64, mechanism credential.Mechanism, psk [32]byte) (*Responder, error) {
	hs, err := newState(false, protocolID, mechanism, psk)
	if err != nil {
		return nil, err
	}
	return &Responder{hs: hs}, nil
}

// Accept authenticates the initiator's request and returns its payload.
// A wrong key, protocol id or mechanism surfaces as ErrHandshakeFailed.
func (r *Responder) Accept(request []byte) ([]byte, error) {
	if r.accepted {
		return nil, ErrOutOfOrder
	}
	payload, _, _, err := r.hs.ReadMessage(nil, request)
	if err != nil {
		return nil, ErrHandshakeFailed
	}
	r.accepted = true
	return payload, nil
}

// Finish writes the response carrying payload and returns the session keys.
func (r *Responder) Finish(payload []byte) ([]byte, Keys, error) {
	if !r.accepted || r.done {
		return nil, Keys{}, ErrOutOfOrder
	}
	msg, cs1, cs2, err := r.hs.WriteMessage(nil, payload)
	if err != nil {
		return nil, Keys{}, fmt.Errorf("noise: write response: %w", err)
	}
	keys, err := keysFrom(cs1, cs2)
	if err != nil {
		return nil, Keys{}, err
	}
	r.done = true
	mem.Wipe(r.hs.LocalEphemeral().Private)
	return msg, keys, nil
}
