package session

// ConnectionState is the lifecycle of the client's session endpoint.
type ConnectionState int

const (
	Idle ConnectionState = iota
	Authenticating
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Authenticating:
		return "Authenticating"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}
