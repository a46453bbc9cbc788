package mode

type Mode int

const (
	Unknown Mode = iota
	// Client joins a game server.
	Client
	// Server hosts a game server.
	Server
	// Version prints the build tag and exits.
	Version
)
