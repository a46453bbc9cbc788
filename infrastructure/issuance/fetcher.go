package issuance

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strconv"

	"avb/domain/credential"
	"avb/infrastructure/wire/token_response"

	"github.com/coder/websocket"
)

// maxMessageSize bounds the single message an issuer sends.
const maxMessageSize = 4096

// Fetch asks the issuer at rawURL for a token and returns the response together
// with the game server address it names.
func Fetch(ctx context.Context, rawURL string, clientID uint64) (token_response.Response, netip.AddrPort, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return token_response.Response{}, netip.AddrPort{}, fmt.Errorf("invalid issuer url: %w", err)
	}
	if clientID != 0 {
		q := u.Query()
		q.Set("client_id", strconv.FormatUint(clientID, 10))
		u.RawQuery = q.Encode()
	}

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return token_response.Response{}, netip.AddrPort{}, fmt.Errorf("failed to reach issuer: %w", err)
	}
	defer func() {
		_ = conn.CloseNow()
	}()
	conn.SetReadLimit(maxMessageSize)

	typ, data, err := conn.Read(ctx)
	if err != nil {
		return token_response.Response{}, netip.AddrPort{}, fmt.Errorf("failed to read issuer response: %w", err)
	}
	if typ != websocket.MessageBinary {
		return token_response.Response{}, netip.AddrPort{}, fmt.Errorf("unexpected %v message from issuer", typ)
	}
	response, err := token_response.Unmarshal(data)
	if err != nil {
		return token_response.Response{}, netip.AddrPort{}, err
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")

	host, err := lookupHost(ctx, u.Hostname())
	if err != nil {
		return token_response.Response{}, netip.AddrPort{}, err
	}
	return response, response.GameAddress(host), nil
}

// FetchCredential turns an issuer response into a credential for the named game server.
func FetchCredential(ctx context.Context, rawURL string, clientID uint64) (credential.Credential, error) {
	response, game, err := Fetch(ctx, rawURL, clientID)
	if err != nil {
		return nil, err
	}
	token, err := response.Token.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return credential.Build(credential.SignedTokenMechanism, game, clientID, token, response.Token.ProtocolID)
}

func lookupHost(ctx context.Context, host string) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap(), nil
	}
	addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to resolve issuer host %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return netip.Addr{}, fmt.Errorf("issuer host %q has no addresses", host)
	}
	return addrs[0].Unmap(), nil
}
