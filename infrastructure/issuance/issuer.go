package issuance

import (
	"context"
	"net/http"
	"net/netip"
	"strconv"
	"sync/atomic"
	"time"

	"avb/application/logging"
	"avb/domain/network"
	"avb/infrastructure/cryptography/connect_token"
	"avb/infrastructure/wire/token_response"

	"github.com/coder/websocket"
)

// Issuer hands out connect tokens for one game server over websocket. A client
// connects, optionally naming itself with ?client_id=, receives a single
// binary TokenIssuanceResponse and the connection is closed.
//
// Anyone who can reach the issuer gets a token: it is meant for development.
type Issuer struct {
	key      [connect_token.KeySize]byte
	game     netip.AddrPort
	config   Config
	logger   logging.Logger
	now      func() time.Time
	clientID atomic.Uint64
}

func NewIssuer(key [connect_token.KeySize]byte, game netip.AddrPort, config Config, logger logging.Logger) *Issuer {
	i := &Issuer{
		key:    key,
		game:   game,
		config: config,
		logger: logger,
		now:    time.Now,
	}
	i.clientID.Store(uint64(time.Now().UnixMilli()))
	return i
}

func (i *Issuer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID, err := i.requestedClientID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionDisabled,
		OriginPatterns:  i.config.OriginPatterns,
	})
	if err != nil {
		i.logger.Printf("issuer: websocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	defer func() {
		_ = conn.CloseNow()
	}()

	token, err := connect_token.Generate(connect_token.Params{
		ProtocolID:      network.ProtocolID,
		ClientID:        clientID,
		ServerAddresses: []netip.AddrPort{i.game},
		Lifetime:        i.config.TokenLifetime,
		Timeout:         i.config.Timeout,
	}, i.key, i.now())
	if err != nil {
		i.logger.Printf("issuer: failed to generate token for client %d: %v", clientID, err)
		_ = conn.Close(websocket.StatusInternalError, "token generation failed")
		return
	}
	payload, err := token_response.Marshal(token_response.Response{GamePort: i.game.Port(), Token: token})
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "encoding failed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), i.config.Timeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageBinary, payload); err != nil {
		i.logger.Printf("issuer: failed to deliver token to %s: %v", r.RemoteAddr, err)
		return
	}
	i.logger.Printf("issuer: issued token for client %d to %s", clientID, r.RemoteAddr)
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (i *Issuer) requestedClientID(r *http.Request) (uint64, error) {
	raw := r.URL.Query().Get("client_id")
	if raw == "" {
		return i.clientID.Add(1), nil
	}
	return strconv.ParseUint(raw, 10, 64)
}
