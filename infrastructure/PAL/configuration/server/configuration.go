package server

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"avb/application/session/server"
	"avb/domain/credential"
	"avb/domain/network"
	"avb/infrastructure/cryptography/connect_token"
)

var ErrInvalidConfiguration = errors.New("invalid server configuration")

// Configuration is the human-editable server file.
type Configuration struct {
	Address        string         `yaml:"address"`
	MaxPlayers     uint32         `yaml:"max_players"`
	IdleTimeout    time.Duration  `yaml:"idle_timeout"`
	Authentication Authentication `yaml:"authentication"`
}

// Authentication selects the credential mechanisms the server accepts.
// Keys are hex encoded and 32 bytes long.
type Authentication struct {
	AcceptPreSharedKey bool   `yaml:"accept_pre_shared_key"`
	PreSharedKey       string `yaml:"pre_shared_key,omitempty"`
	AcceptSignedToken  bool   `yaml:"accept_signed_token"`
	TokenKey           string `yaml:"token_key,omitempty"`
	// PublicAddress, when set, must be listed in every presented token.
	PublicAddress string `yaml:"public_address,omitempty"`
}

func NewDefaultConfiguration() *Configuration {
	return &Configuration{
		Address:     netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), network.DefaultPort).String(),
		MaxPlayers:  4,
		IdleTimeout: 10 * time.Second,
		Authentication: Authentication{
			AcceptPreSharedKey: true,
			PreSharedKey:       strings.Repeat("00", credential.KeySize),
		},
	}
}

func (c *Configuration) Validate() error {
	if _, err := c.BindAddress(); err != nil {
		return err
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("%w: negative idle_timeout %v", ErrInvalidConfiguration, c.IdleTimeout)
	}
	_, err := c.Policy()
	return err
}

func (c *Configuration) BindAddress() (netip.AddrPort, error) {
	addr, err := netip.ParseAddrPort(strings.TrimSpace(c.Address))
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("%w: address %q: %w", ErrInvalidConfiguration, c.Address, err)
	}
	return network.AddrPortFrom(addr.Addr(), addr.Port()), nil
}

// Policy builds the admission policy described by the authentication section.
func (c *Configuration) Policy() (server.Policy, error) {
	auth := c.Authentication
	policy := server.Policy{
		ProtocolID:         network.ProtocolID,
		AcceptPreSharedKey: auth.AcceptPreSharedKey,
		AcceptSignedToken:  auth.AcceptSignedToken,
	}
	if !auth.AcceptPreSharedKey && !auth.AcceptSignedToken {
		return server.Policy{}, fmt.Errorf("%w: no authentication mechanism is accepted", ErrInvalidConfiguration)
	}
	if auth.AcceptPreSharedKey {
		key, err := decodeKey("pre_shared_key", auth.PreSharedKey)
		if err != nil {
			return server.Policy{}, err
		}
		policy.PreSharedKey = key
	}
	if auth.AcceptSignedToken {
		key, err := decodeKey("token_key", auth.TokenKey)
		if err != nil {
			return server.Policy{}, err
		}
		policy.Tokens = connect_token.NewOpener(key)
	}
	if public := strings.TrimSpace(auth.PublicAddress); public != "" {
		addr, err := netip.ParseAddrPort(public)
		if err != nil {
			return server.Policy{}, fmt.Errorf("%w: public_address %q: %w", ErrInvalidConfiguration, public, err)
		}
		policy.PublicAddress = addr
	}
	return policy, nil
}

// TokenKey returns the key tokens are sealed with, for a co-located issuer.
func (c *Configuration) TokenKey() ([credential.KeySize]byte, error) {
	return decodeKey("token_key", c.Authentication.TokenKey)
}

func decodeKey(field, value string) ([credential.KeySize]byte, error) {
	var key [credential.KeySize]byte
	raw, err := hex.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return key, fmt.Errorf("%w: %s: %w", ErrInvalidConfiguration, field, err)
	}
	if len(raw) != credential.KeySize {
		return key, fmt.Errorf("%w: %s has %d bytes, expected %d", ErrInvalidConfiguration, field, len(raw), credential.KeySize)
	}
	copy(key[:], raw)
	return key, nil
}
