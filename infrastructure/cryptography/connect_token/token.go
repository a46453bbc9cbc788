package connect_token

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net/netip"
	"time"

	"avb/infrastructure/cryptography/mem"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	DefaultLifetime = 30 * time.Second
	DefaultTimeout  = 10 * time.Second
)

// Token is a connect token: a public section readable by the client and a
// private section only the game server can open.
type Token struct {
	ProtocolID        uint64
	CreateTimestamp   uint64
	ExpireTimestamp   uint64
	Nonce             [NonceSize]byte
	Private           [PrivateSize]byte
	TimeoutSeconds    uint32
	ServerAddresses   []netip.AddrPort
	ClientToServerKey [KeySize]byte
	ServerToClientKey [KeySize]byte
}

// PrivateData is the content of the sealed private section.
type PrivateData struct {
	ClientID          uint64
	TimeoutSeconds    uint32
	ServerAddresses   []netip.AddrPort
	ClientToServerKey [KeySize]byte
	ServerToClientKey [KeySize]byte
	UserData          [UserDataSize]byte
}

// Params describe a token to issue.
type Params struct {
	ProtocolID      uint64
	ClientID        uint64
	ServerAddresses []netip.AddrPort
	Lifetime        time.Duration
	Timeout         time.Duration
	UserData        []byte
}

// Generate issues a token sealed with the issuer key shared with the game servers.
func Generate(params Params, key [KeySize]byte, now time.Time) (*Token, error) {
	if err := validateAddresses(params.ServerAddresses); err != nil {
		return nil, err
	}
	if len(params.UserData) > UserDataSize {
		return nil, ErrUserDataTooLarge
	}
	lifetime := params.Lifetime
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	t := &Token{
		ProtocolID:      params.ProtocolID,
		CreateTimestamp: uint64(now.Unix()),
		ExpireTimestamp: uint64(now.Add(lifetime).Unix()),
		TimeoutSeconds:  uint32(timeout / time.Second),
		ServerAddresses: make([]netip.AddrPort, len(params.ServerAddresses)),
	}
	for i, addr := range params.ServerAddresses {
		t.ServerAddresses[i] = netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
	}
	if _, err := rand.Read(t.Nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	if _, err := rand.Read(t.ClientToServerKey[:]); err != nil {
		return nil, fmt.Errorf("failed to generate client key: %w", err)
	}
	if _, err := rand.Read(t.ServerToClientKey[:]); err != nil {
		return nil, fmt.Errorf("failed to generate server key: %w", err)
	}

	private := PrivateData{
		ClientID:          params.ClientID,
		TimeoutSeconds:    t.TimeoutSeconds,
		ServerAddresses:   t.ServerAddresses,
		ClientToServerKey: t.ClientToServerKey,
		ServerToClientKey: t.ServerToClientKey,
	}
	copy(private.UserData[:], params.UserData)

	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, err
	}
	plain := private.marshal()
	sealed := aead.Seal(nil, t.Nonce[:], plain[:], t.additionalData())
	mem.Wipe(plain[:])
	copy(t.Private[:], sealed)
	return t, nil
}

// MarshalBinary returns the Size-byte wire form of the token.
func (t *Token) MarshalBinary() ([]byte, error) {
	if err := validateAddresses(t.ServerAddresses); err != nil {
		return nil, err
	}
	b := make([]byte, Size)
	copy(b[versionOffset:], versionInfo)
	binary.LittleEndian.PutUint64(b[protocolOffset:], t.ProtocolID)
	binary.LittleEndian.PutUint64(b[createOffset:], t.CreateTimestamp)
	binary.LittleEndian.PutUint64(b[expireOffset:], t.ExpireTimestamp)
	copy(b[nonceOffset:], t.Nonce[:])
	copy(b[privateOffset:], t.Private[:])
	binary.LittleEndian.PutUint32(b[timeoutOffset:], t.TimeoutSeconds)
	putAddresses(b[addressesOffset:c2sKeyOffset], t.ServerAddresses)
	copy(b[c2sKeyOffset:], t.ClientToServerKey[:])
	copy(b[s2cKeyOffset:], t.ServerToClientKey[:])
	return b, nil
}

// Parse reconstitutes a token from its wire form. The private section stays sealed.
func Parse(b []byte) (*Token, error) {
	if len(b) != Size {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidLength, len(b), Size)
	}
	if string(b[versionOffset:protocolOffset]) != versionInfo {
		return nil, fmt.Errorf("%w: unknown version", ErrMalformedHeader)
	}
	if !allZero(b[publicEnd:]) {
		return nil, fmt.Errorf("%w: non-zero padding", ErrMalformedHeader)
	}

	t := &Token{
		ProtocolID:      binary.LittleEndian.Uint64(b[protocolOffset:]),
		CreateTimestamp: binary.LittleEndian.Uint64(b[createOffset:]),
		ExpireTimestamp: binary.LittleEndian.Uint64(b[expireOffset:]),
		TimeoutSeconds:  binary.LittleEndian.Uint32(b[timeoutOffset:]),
	}
	if t.ExpireTimestamp < t.CreateTimestamp {
		return nil, fmt.Errorf("%w: expires before it was created", ErrMalformedHeader)
	}
	copy(t.Nonce[:], b[nonceOffset:privateOffset])
	copy(t.Private[:], b[privateOffset:timeoutOffset])
	addresses, err := readAddresses(b[addressesOffset:c2sKeyOffset])
	if err != nil {
		return nil, err
	}
	t.ServerAddresses = addresses
	copy(t.ClientToServerKey[:], b[c2sKeyOffset:s2cKeyOffset])
	copy(t.ServerToClientKey[:], b[s2cKeyOffset:publicEnd])
	return t, nil
}

// Open authenticates and decrypts the private section on the game server.
func (t *Token) Open(key [KeySize]byte, protocolID uint64, now time.Time) (*PrivateData, error) {
	if t.ProtocolID != protocolID {
		return nil, fmt.Errorf("%w: token %d, server %d", ErrProtocolMismatch, t.ProtocolID, protocolID)
	}
	if uint64(now.Unix()) >= t.ExpireTimestamp {
		return nil, ErrExpired
	}
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, t.Nonce[:], t.Private[:], t.additionalData())
	if err != nil {
		return nil, ErrTampered
	}
	defer mem.Wipe(plain)
	return unmarshalPrivate(plain)
}

// Expired reports whether the token can no longer be presented.
func (t *Token) Expired(now time.Time) bool {
	return uint64(now.Unix()) >= t.ExpireTimestamp
}

func (t *Token) additionalData() []byte {
	ad := make([]byte, 0, len(versionInfo)+16)
	ad = append(ad, versionInfo...)
	ad = binary.LittleEndian.AppendUint64(ad, t.ProtocolID)
	ad = binary.LittleEndian.AppendUint64(ad, t.ExpireTimestamp)
	return ad
}

func (p PrivateData) marshal() [privatePlainSize]byte {
	var b [privatePlainSize]byte
	binary.LittleEndian.PutUint64(b[privClientIDOffset:], p.ClientID)
	binary.LittleEndian.PutUint32(b[privTimeoutOffset:], p.TimeoutSeconds)
	putAddresses(b[privAddressesOffset:privC2SKeyOffset], p.ServerAddresses)
	copy(b[privC2SKeyOffset:], p.ClientToServerKey[:])
	copy(b[privS2CKeyOffset:], p.ServerToClientKey[:])
	copy(b[privUserDataOffset:], p.UserData[:])
	return b
}

func unmarshalPrivate(b []byte) (*PrivateData, error) {
	if len(b) != privatePlainSize {
		return nil, ErrInvalidLength
	}
	p := &PrivateData{
		ClientID:       binary.LittleEndian.Uint64(b[privClientIDOffset:]),
		TimeoutSeconds: binary.LittleEndian.Uint32(b[privTimeoutOffset:]),
	}
	addresses, err := readAddresses(b[privAddressesOffset:privC2SKeyOffset])
	if err != nil {
		return nil, err
	}
	p.ServerAddresses = addresses
	copy(p.ClientToServerKey[:], b[privC2SKeyOffset:privS2CKeyOffset])
	copy(p.ServerToClientKey[:], b[privS2CKeyOffset:privUserDataOffset])
	copy(p.UserData[:], b[privUserDataOffset:privEnd])
	return p, nil
}

// Contains reports whether addr is one of the servers the token was issued for.
func (p *PrivateData) Contains(addr netip.AddrPort) bool {
	addr = netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
	for _, a := range p.ServerAddresses {
		if a == addr {
			return true
		}
	}
	return false
}
