package connect_token

import (
	"errors"
	"fmt"
	"time"

	"avb/application/session/server"
)

// Opener validates tokens on the game server with the issuer key.
type Opener struct {
	key [KeySize]byte
}

func NewOpener(key [KeySize]byte) *Opener {
	return &Opener{key: key}
}

func (o *Opener) Open(token []byte, protocolID uint64, now time.Time) (server.TokenGrant, error) {
	parsed, err := Parse(token)
	if err != nil {
		return server.TokenGrant{}, err
	}
	private, err := parsed.Open(o.key, protocolID, now)
	if err != nil {
		if errors.Is(err, ErrProtocolMismatch) {
			return server.TokenGrant{}, fmt.Errorf("%w: %w", server.ErrProtocolMismatch, err)
		}
		return server.TokenGrant{}, err
	}
	return server.TokenGrant{
		ClientID:        private.ClientID,
		SessionKey:      private.ClientToServerKey,
		ServerAddresses: private.ServerAddresses,
	}, nil
}
