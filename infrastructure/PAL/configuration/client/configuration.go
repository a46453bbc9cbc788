package client

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"avb/domain/app"
	"avb/domain/credential"
	"avb/domain/network"

	"github.com/caarlos0/env/v11"
)

var (
	ErrInvalidAddress = errors.New("invalid server address")
	ErrInvalidKey     = errors.New("invalid pre-shared key")
)

// Configuration is the client's start-up surface. Flags override AVB_*
// environment variables.
type Configuration struct {
	Address      string `env:"AVB_ADDRESS"`
	IP           string `env:"AVB_IP"`
	Port         uint   `env:"AVB_PORT"`
	ClientID     uint64 `env:"AVB_CLIENT_ID"`
	PreSharedKey string `env:"AVB_PRE_SHARED_KEY"`
	IssuerURL    string `env:"AVB_ISSUER_URL"`
	UI           string `env:"AVB_UI" envDefault:"tui"`
}

// Parse reads environ (the process environment when nil) and then args.
// A zero client id is replaced by now in unix milliseconds.
func Parse(fs *flag.FlagSet, args []string, environ map[string]string, now time.Time) (Configuration, error) {
	var cfg Configuration
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Configuration{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.Address, "address", cfg.Address, "server address (ip:port)")
	fs.StringVar(&cfg.IP, "ip", cfg.IP, "server ip, used when no address is given")
	fs.UintVar(&cfg.Port, "port", cfg.Port, "server port, used with --ip")
	fs.Uint64Var(&cfg.ClientID, "client-id", cfg.ClientID, "client id (default: current unix millis)")
	fs.StringVar(&cfg.PreSharedKey, "key", cfg.PreSharedKey, "hex encoded 32 byte pre-shared key")
	fs.StringVar(&cfg.IssuerURL, "issuer", cfg.IssuerURL, "websocket url of a token issuer")
	fs.StringVar(&cfg.UI, "ui", cfg.UI, "tui or cli")
	if err := fs.Parse(args); err != nil {
		return Configuration{}, err
	}

	if cfg.ClientID == 0 {
		cfg.ClientID = uint64(now.UnixMilli())
	}
	return cfg, nil
}

// Peer resolves the server to join at start-up. An address wins over ip and
// port; with neither the client starts in the main menu.
func (c Configuration) Peer() (netip.AddrPort, bool, error) {
	if address := strings.TrimSpace(c.Address); address != "" {
		addrPort, err := netip.ParseAddrPort(address)
		if err != nil {
			return netip.AddrPort{}, false, fmt.Errorf("%w %q: %w", ErrInvalidAddress, address, err)
		}
		return network.AddrPortFrom(addrPort.Addr(), addrPort.Port()), true, nil
	}
	if ip := strings.TrimSpace(c.IP); ip != "" {
		addr, err := netip.ParseAddr(ip)
		if err != nil {
			return netip.AddrPort{}, false, fmt.Errorf("%w %q: %w", ErrInvalidAddress, ip, err)
		}
		if c.Port > 65535 {
			return netip.AddrPort{}, false, fmt.Errorf("%w: port %d out of range", ErrInvalidAddress, c.Port)
		}
		return network.AddrPortFrom(addr, uint16(c.Port)), true, nil
	}
	return netip.AddrPort{}, false, nil
}

// Key decodes the pre-shared key. Unset means the all-zero development key.
func (c Configuration) Key() ([]byte, error) {
	raw := strings.TrimSpace(c.PreSharedKey)
	if raw == "" {
		return make([]byte, credential.KeySize), nil
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	if len(key) != credential.KeySize {
		return nil, fmt.Errorf("%w: %d bytes, expected %d", ErrInvalidKey, len(key), credential.KeySize)
	}
	return key, nil
}

func (c Configuration) UIMode() (app.UIMode, error) {
	return app.ParseUIMode(c.UI)
}
