package udp

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrUnknownSession = errors.New("control packet for unknown session")
	ErrReplayed       = errors.New("control packet replayed")
	ErrUnauthentic    = errors.New("control packet failed authentication")
)

// control packet layout: [type][session id 16][counter u64][tag]
const controlHeaderSize = 1 + 16 + 8

// controlCipher seals keepalive and disconnect packets with the keys of the
// completed handshake. Each direction has its own key and counter.
type controlCipher struct {
	sessionID uuid.UUID
	send      cipher.AEAD
	recv      cipher.AEAD
	sent      atomic.Uint64

	mu       sync.Mutex
	received uint64
}

func newControlCipher(sessionID uuid.UUID, sendKey, recvKey [32]byte) (*controlCipher, error) {
	send, err := chacha20poly1305.New(sendKey[:])
	if err != nil {
		return nil, err
	}
	recv, err := chacha20poly1305.New(recvKey[:])
	if err != nil {
		return nil, err
	}
	return &controlCipher{sessionID: sessionID, send: send, recv: recv}, nil
}

func controlNonce(counter uint64) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint64(nonce[4:], counter)
	return nonce
}

func (c *controlCipher) seal(kind byte) []byte {
	counter := c.sent.Add(1)
	header := make([]byte, controlHeaderSize, controlHeaderSize+chacha20poly1305.Overhead)
	header[0] = kind
	copy(header[1:17], c.sessionID[:])
	binary.BigEndian.PutUint64(header[17:25], counter)
	return c.send.Seal(header, controlNonce(counter), nil, header)
}

// open authenticates a control packet and returns its type. Counters must
// strictly increase.
func (c *controlCipher) open(packet []byte) (byte, error) {
	if len(packet) != controlHeaderSize+chacha20poly1305.Overhead {
		return 0, ErrMalformedPacket
	}
	header := packet[:controlHeaderSize]
	if uuid.UUID(header[1:17]) != c.sessionID {
		return 0, ErrUnknownSession
	}
	counter := binary.BigEndian.Uint64(header[17:25])

	c.mu.Lock()
	defer c.mu.Unlock()
	if counter <= c.received {
		return 0, ErrReplayed
	}
	if _, err := c.recv.Open(nil, controlNonce(counter), packet[controlHeaderSize:], header); err != nil {
		return 0, ErrUnauthentic
	}
	c.received = counter
	return header[0], nil
}
