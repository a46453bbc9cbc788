package credential

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"avb/domain/network"
)

// KeySize is the length of a pre-shared key in bytes.
const KeySize = 32

// TokenSize is the exact length of a signed connect token in bytes.
const TokenSize = 2048

var ErrInvalidCredentialInput = errors.New("invalid credential input")

// Mechanism names the way a client proves it may join.
type Mechanism uint8

const (
	UnknownMechanism Mechanism = iota
	PreSharedKeyMechanism
	SignedTokenMechanism
)

func (m Mechanism) String() string {
	switch m {
	case PreSharedKeyMechanism:
		return "pre-shared key"
	case SignedTokenMechanism:
		return "signed token"
	default:
		return fmt.Sprintf("mechanism(%d)", uint8(m))
	}
}

// Credential is either a PreSharedKey or a SignedToken.
type Credential interface {
	Mechanism() Mechanism
	ServerAddress() netip.AddrPort
	credential()
}

// PreSharedKey authenticates with a key both sides already hold.
type PreSharedKey struct {
	Server     netip.AddrPort
	ClientID   uint64
	Key        [KeySize]byte
	ProtocolID uint64
}

func (PreSharedKey) Mechanism() Mechanism { return PreSharedKeyMechanism }

func (p PreSharedKey) ServerAddress() netip.AddrPort { return p.Server }

func (PreSharedKey) credential() {}

// KeyString formats the key as a byte list, e.g. [0, 0, ...].
func (p PreSharedKey) KeyString() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range p.Key {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d", v)
	}
	b.WriteByte(']')
	return b.String()
}

// SignedToken authenticates with an opaque token minted by a trusted issuer.
type SignedToken struct {
	Server netip.AddrPort
	Token  []byte
}

func (SignedToken) Mechanism() Mechanism { return SignedTokenMechanism }

func (s SignedToken) ServerAddress() netip.AddrPort { return s.Server }

func (SignedToken) credential() {}

// Build assembles a credential for one connection attempt. For
// PreSharedKeyMechanism keyOrToken must be exactly KeySize bytes; for
// SignedTokenMechanism it must be a non-empty token no longer than TokenSize.
func Build(
	mechanism Mechanism,
	target netip.AddrPort,
	localIdentity uint64,
	keyOrToken []byte,
	protocolID uint64,
) (Credential, error) {
	if !network.IsConcrete(target) {
		return nil, fmt.Errorf("%w: server address %v is not concrete", ErrInvalidCredentialInput, target)
	}

	switch mechanism {
	case PreSharedKeyMechanism:
		if len(keyOrToken) != KeySize {
			return nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrInvalidCredentialInput, KeySize, len(keyOrToken))
		}
		cred := PreSharedKey{
			Server:     target,
			ClientID:   localIdentity,
			ProtocolID: protocolID,
		}
		copy(cred.Key[:], keyOrToken)
		return cred, nil
	case SignedTokenMechanism:
		if len(keyOrToken) == 0 {
			return nil, fmt.Errorf("%w: token is missing", ErrInvalidCredentialInput)
		}
		if len(keyOrToken) > TokenSize {
			return nil, fmt.Errorf("%w: token exceeds %d bytes", ErrInvalidCredentialInput, TokenSize)
		}
		token := make([]byte, len(keyOrToken))
		copy(token, keyOrToken)
		return SignedToken{Server: target, Token: token}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentialInput, mechanism)
	}
}
