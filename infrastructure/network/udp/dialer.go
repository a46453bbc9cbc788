package udp

import (
	"net"
	"net/netip"
)

type UDPDialer interface {
	Dial(addr netip.AddrPort) (*net.UDPConn, error)
}

type DefaultUDPDialer struct {
}

func (d DefaultUDPDialer) Dial(addr netip.AddrPort) (*net.UDPConn, error) {
	return net.DialUDP("udp", nil, net.UDPAddrFromAddrPort(addr))
}
