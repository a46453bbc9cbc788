package server

import (
	"flag"
	"fmt"
	"net/netip"
)

// Override carries command line settings. Address and capacity replace the
// file values only when ip, port and max players are all given.
type Override struct {
	ConfigPath string
	IP         string
	Port       uint
	MaxPlayers uint

	given map[string]bool
}

func ParseOverride(fs *flag.FlagSet, args []string) (Override, error) {
	var o Override
	fs.StringVar(&o.ConfigPath, "config", "", "path to the server configuration file")
	fs.StringVar(&o.IP, "ip", "", "bind ip")
	fs.UintVar(&o.Port, "port", 0, "bind port")
	fs.UintVar(&o.MaxPlayers, "max-players", 0, "maximum number of players")
	if err := fs.Parse(args); err != nil {
		return Override{}, err
	}
	o.given = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		o.given[f.Name] = true
	})
	return o, nil
}

// Complete reports whether the address and capacity override applies.
func (o Override) Complete() bool {
	return o.given["ip"] && o.given["port"] && o.given["max-players"]
}

// Partial reports whether some, but not all, of the override was given.
func (o Override) Partial() bool {
	return !o.Complete() && (o.given["ip"] || o.given["port"] || o.given["max-players"])
}

func (o Override) Apply(c *Configuration) error {
	if !o.Complete() {
		return nil
	}
	ip, err := netip.ParseAddr(o.IP)
	if err != nil {
		return fmt.Errorf("%w: ip %q: %w", ErrInvalidConfiguration, o.IP, err)
	}
	if o.Port == 0 || o.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfiguration, o.Port)
	}
	if uint64(o.MaxPlayers) > uint64(^uint32(0)) {
		return fmt.Errorf("%w: max players %d out of range", ErrInvalidConfiguration, o.MaxPlayers)
	}
	c.Address = netip.AddrPortFrom(ip.Unmap(), uint16(o.Port)).String()
	c.MaxPlayers = uint32(o.MaxPlayers)
	return nil
}
