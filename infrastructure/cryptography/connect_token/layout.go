package connect_token

import (
	"encoding/binary"
	"net/netip"

	"avb/domain/credential"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// Size is the exact length of a marshalled token.
	Size = credential.TokenSize
	// PrivateSize is the length of the sealed private section, tag included.
	PrivateSize = 1024
	// KeySize is the length of the per-session keys and of the issuer key.
	KeySize = chacha20poly1305.KeySize
	// NonceSize is the length of the XChaCha20-Poly1305 nonce.
	NonceSize = chacha20poly1305.NonceSizeX
	// UserDataSize is the fixed length of the opaque user data block.
	UserDataSize = 256
	// MaxServerAddresses bounds the address list of a single token.
	MaxServerAddresses = 8
)

const versionInfo = "AVB TOKEN 1\x00"

const (
	addressSize     = 1 + 16 + 2
	addressListSize = 1 + MaxServerAddresses*addressSize

	versionOffset   = 0
	protocolOffset  = versionOffset + len(versionInfo)
	createOffset    = protocolOffset + 8
	expireOffset    = createOffset + 8
	nonceOffset     = expireOffset + 8
	privateOffset   = nonceOffset + NonceSize
	timeoutOffset   = privateOffset + PrivateSize
	addressesOffset = timeoutOffset + 4
	c2sKeyOffset    = addressesOffset + addressListSize
	s2cKeyOffset    = c2sKeyOffset + KeySize
	publicEnd       = s2cKeyOffset + KeySize

	privatePlainSize    = PrivateSize - chacha20poly1305.Overhead
	privClientIDOffset  = 0
	privTimeoutOffset   = privClientIDOffset + 8
	privAddressesOffset = privTimeoutOffset + 4
	privC2SKeyOffset    = privAddressesOffset + addressListSize
	privS2CKeyOffset    = privC2SKeyOffset + KeySize
	privUserDataOffset  = privS2CKeyOffset + KeySize
	privEnd             = privUserDataOffset + UserDataSize
)

const (
	addressTypeNone byte = 0
	addressTypeIPv4 byte = 4
	addressTypeIPv6 byte = 6
)

var _ = [1]struct{}{}[publicEnd/(Size+1)]
var _ = [1]struct{}{}[privEnd/(privatePlainSize+1)]

func putAddresses(dst []byte, addresses []netip.AddrPort) {
	dst[0] = byte(len(addresses))
	for i, addr := range addresses {
		slot := dst[1+i*addressSize : 1+(i+1)*addressSize]
		ip := addr.Addr().Unmap()
		if ip.Is4() {
			slot[0] = addressTypeIPv4
			v4 := ip.As4()
			copy(slot[1:17], v4[:])
		} else {
			slot[0] = addressTypeIPv6
			v6 := ip.As16()
			copy(slot[1:17], v6[:])
		}
		binary.LittleEndian.PutUint16(slot[17:19], addr.Port())
	}
}

func readAddresses(src []byte) ([]netip.AddrPort, error) {
	count := int(src[0])
	if count == 0 {
		return nil, ErrNoServerAddresses
	}
	if count > MaxServerAddresses {
		return nil, ErrTooManyAddresses
	}
	addresses := make([]netip.AddrPort, 0, count)
	for i := 0; i < MaxServerAddresses; i++ {
		slot := src[1+i*addressSize : 1+(i+1)*addressSize]
		if i >= count {
			if !allZero(slot) {
				return nil, ErrMalformedHeader
			}
			continue
		}
		port := binary.LittleEndian.Uint16(slot[17:19])
		var ip netip.Addr
		switch slot[0] {
		case addressTypeIPv4:
			if !allZero(slot[5:17]) {
				return nil, ErrInvalidAddress
			}
			ip = netip.AddrFrom4([4]byte(slot[1:5]))
		case addressTypeIPv6:
			ip = netip.AddrFrom16([16]byte(slot[1:17]))
		default:
			return nil, ErrInvalidAddress
		}
		if port == 0 {
			return nil, ErrInvalidAddress
		}
		addresses = append(addresses, netip.AddrPortFrom(ip, port))
	}
	return addresses, nil
}

func validateAddresses(addresses []netip.AddrPort) error {
	if len(addresses) == 0 {
		return ErrNoServerAddresses
	}
	if len(addresses) > MaxServerAddresses {
		return ErrTooManyAddresses
	}
	for _, addr := range addresses {
		if !addr.IsValid() || addr.Port() == 0 {
			return ErrInvalidAddress
		}
	}
	return nil
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
