package session

import (
	"net/netip"

	"avb/domain/credential"
)

// Event is an observable session lifecycle notification.
type Event interface {
	Name() string
}

type JoinRequested struct {
	Address    netip.AddrPort
	Credential credential.Credential
}

type LeaveRequested struct {
	Address netip.AddrPort
}

type JoinSucceeded struct {
	Address   netip.AddrPort
	SessionID string
}

type JoinFailed struct {
	Address netip.AddrPort
	Reason  error
}

type SessionClosed struct {
	Address netip.AddrPort
}

type SessionEstablished struct {
	SessionID string
	ClientID  uint64
	Address   netip.AddrPort
	Mechanism credential.Mechanism
}

type ConnectionRejected struct {
	Address netip.AddrPort
	Reason  error
}

type SessionEnded struct {
	SessionID string
	ClientID  uint64
	Address   netip.AddrPort
	Reason    string
}

func (JoinRequested) Name() string      { return "JoinRequested" }
func (LeaveRequested) Name() string     { return "LeaveRequested" }
func (JoinSucceeded) Name() string      { return "JoinSucceeded" }
func (JoinFailed) Name() string         { return "JoinFailed" }
func (SessionClosed) Name() string      { return "SessionClosed" }
func (SessionEstablished) Name() string { return "SessionEstablished" }
func (ConnectionRejected) Name() string { return "ConnectionRejected" }
func (SessionEnded) Name() string       { return "SessionEnded" }
