package network

import (
	"net/netip"
	"time"
)

// ProtocolID identifies the game protocol version. Peers with a different id
// are refused during authentication.
const ProtocolID uint64 = 0

// DefaultPort is used when an ip is configured without a port.
const DefaultPort uint16 = 16565

// TickRate is the number of simulation ticks per second.
const TickRate = 60

// TickDuration is the fixed interval of the cooperative tick loop.
const TickDuration = time.Second / TickRate

// AddrPortFrom pairs an ip address with a port. A zero port falls back to DefaultPort.
func AddrPortFrom(ip netip.Addr, port uint16) netip.AddrPort {
	if port == 0 {
		port = DefaultPort
	}
	return netip.AddrPortFrom(ip.Unmap(), port)
}

// IsConcrete reports whether addr names a specific ip and a non-zero port.
func IsConcrete(addr netip.AddrPort) bool {
	return addr.IsValid() && addr.Port() != 0 && !addr.Addr().IsUnspecified()
}
