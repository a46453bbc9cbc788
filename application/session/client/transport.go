package client

import (
	"context"
	"net/netip"

	"avb/domain/credential"
)

// Attempt is one request to open a link to a game server.
type Attempt struct {
	Generation uint64
	Address    netip.AddrPort
	Credential credential.Credential
}

type CompletionKind int

const (
	// Accepted means the server authenticated the credential.
	Accepted CompletionKind = iota
	// Rejected means the attempt failed before a session was established.
	Rejected
	// Closed means an established link went away.
	Closed
)

func (k CompletionKind) String() string {
	switch k {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Completion reports the outcome of an Attempt back to the Manager.
type Completion struct {
	Generation uint64
	Kind       CompletionKind
	SessionID  string
	Err        error
}

// Transport opens and closes links on behalf of the Manager. Open must not
// block: outcomes are sent to completions, and sending stops once ctx is done.
type Transport interface {
	Open(ctx context.Context, attempt Attempt, completions chan<- Completion)
	Close(generation uint64)
}
