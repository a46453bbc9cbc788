package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strings"
	"time"

	sessionClient "avb/application/session/client"
	"avb/domain/app"
	"avb/domain/credential"
	"avb/domain/network"
	clientConfiguration "avb/infrastructure/PAL/configuration/client"
	"avb/infrastructure/issuance"
	"avb/infrastructure/telemetry/sessionstats"
	"avb/presentation/interactive_commands"
	"avb/presentation/ui/tui"

	"golang.org/x/sync/errgroup"
)

const (
	eventBuffer  = 64
	fetchTimeout = 10 * time.Second
)

var (
	// ErrNoServer is returned by Join when neither an address nor an issuer is known.
	ErrNoServer = errors.New("no server address configured")
	// ErrIssuerPicksServer is returned when an address is given while an
	// issuer is configured; the issuer's response names the game server.
	ErrIssuerPicksServer = errors.New("the token issuer picks the server, join without an address")
	ErrJoinUsage         = errors.New("usage: join [ip[:port] | ip port]")
)

type CredentialFetcher func(ctx context.Context, issuerURL string, clientID uint64) (credential.Credential, error)

type DashboardFunc func(ctx context.Context, controller tui.ClientController, logs tui.LogFeed) error

// Runner drives the client: the tick loop, the start-up join and the
// user's control surface.
type Runner struct {
	deps      AppDependencies
	uiMode    app.UIMode
	logs      tui.LogFeed
	input     io.Reader
	dashboard DashboardFunc
	fetch     CredentialFetcher
	collector *sessionstats.Collector
}

func NewRunner(deps AppDependencies, uiMode app.UIMode, logs tui.LogFeed, input io.Reader) *Runner {
	return &Runner{
		deps:      deps,
		uiMode:    uiMode,
		logs:      logs,
		input:     input,
		dashboard: tui.RunClient,
		fetch:     issuance.FetchCredential,
		collector: sessionstats.NewCollector(),
	}
}

func (r *Runner) Run(ctx context.Context) error {
	manager := r.deps.Manager()
	if err := manager.Spawn(); err != nil {
		return fmt.Errorf("failed to spawn session endpoint: %w", err)
	}
	r.deps.Machine().OnTransition(r.setupWorld)

	events, unsubscribe := r.deps.Bus().Subscribe(eventBuffer)
	defer unsubscribe()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		r.tickLoop(gctx)
		return nil
	})
	g.Go(func() error {
		r.collector.Start(gctx, events)
		return nil
	})
	g.Go(func() error {
		r.joinAtStartup()
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return r.control(gctx)
	})
	err := g.Wait()

	if leaveErr := manager.RequestLeave(); leaveErr != nil {
		r.deps.Logger().Printf("failed to leave on exit: %v", leaveErr)
	}
	manager.Tick()
	s := r.collector.Snapshot()
	r.deps.Logger().Printf("client stopped: %d joins, %d failed", s.Joins, s.JoinFailures)
	return err
}

func (r *Runner) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(network.TickDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.deps.Manager().Tick()
		}
	}
}

// joinAtStartup joins the configured server, if there is one.
func (r *Runner) joinAtStartup() {
	conf := r.deps.Configuration()
	_, ok, err := conf.Peer()
	if err != nil {
		r.deps.Logger().Printf("ignoring configured server: %v", err)
		return
	}
	if !ok && conf.IssuerURL == "" {
		r.deps.Logger().Printf("no server configured, staying in the main menu")
		return
	}
	if err := r.Join(""); err != nil {
		r.deps.Logger().Printf("failed to join at start-up: %v", err)
	}
}

func (r *Runner) control(ctx context.Context) error {
	if r.uiMode == app.TUI {
		return r.dashboard(ctx, r, r.logs)
	}
	return r.commands().Listen(ctx, r.input)
}

func (r *Runner) commands() *interactive_commands.Dispatcher {
	d := interactive_commands.NewDispatcher(r.deps.Logger())
	d.Handle("join", func(args []string) error {
		address, err := joinAddress(args)
		if err != nil {
			return err
		}
		return r.Join(address)
	})
	d.Handle("leave", func([]string) error {
		return r.Leave()
	})
	for name, sub := range map[string]app.GameSubState{
		"play":   app.Playing,
		"resume": app.Playing,
		"edit":   app.Editing,
		"pause":  app.Paused,
	} {
		sub := sub
		d.Handle(name, func([]string) error {
			return r.SetSubState(sub)
		})
	}
	d.Handle("status", func([]string) error {
		s := r.Snapshot()
		r.deps.Logger().Printf("%s, connection %s, server %v, %d entities",
			r.AppState(), s.State, s.Target, r.EntityCount())
		return nil
	})
	return d
}

// setupWorld populates the game world when a session starts. Leaving is
// cleaned up by the state machine.
func (r *Runner) setupWorld(from, to app.State) {
	if from.IsMainMenu() && to.IsInGame() {
		vehicle := r.deps.Entities().Spawn()
		camera := r.deps.Entities().Spawn()
		r.deps.Logger().Printf("spawned vehicle %d and camera %d", vehicle, camera)
	}
}

// Join starts joining address, or the configured server when address is
// empty. The outcome is applied by the tick loop.
func (r *Runner) Join(address string) error {
	conf := r.deps.Configuration()
	cred, err := r.credential(conf, address)
	if err != nil {
		return err
	}
	return r.deps.Manager().RequestJoin(cred, cred.ServerAddress())
}

// joinAddress accepts "join", "join ip", "join ip:port" and "join ip port".
func joinAddress(args []string) (string, error) {
	switch len(args) {
	case 0:
		return "", nil
	case 1:
		return args[0], nil
	case 2:
		return net.JoinHostPort(args[0], args[1]), nil
	default:
		return "", ErrJoinUsage
	}
}

func (r *Runner) credential(conf clientConfiguration.Configuration, address string) (credential.Credential, error) {
	if conf.IssuerURL != "" {
		if strings.TrimSpace(address) != "" {
			return nil, ErrIssuerPicksServer
		}
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		cred, err := r.fetch(ctx, conf.IssuerURL, conf.ClientID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch a connect token: %w", err)
		}
		return cred, nil
	}

	target, err := resolveTarget(conf, address)
	if err != nil {
		return nil, err
	}
	key, err := conf.Key()
	if err != nil {
		return nil, err
	}
	cred, err := credential.Build(credential.PreSharedKeyMechanism, target, conf.ClientID, key, network.ProtocolID)
	if err != nil {
		return nil, err
	}
	if psk, ok := cred.(credential.PreSharedKey); ok {
		r.deps.Logger().Printf("client %d using pre-shared key %s", psk.ClientID, psk.KeyString())
	}
	return cred, nil
}

func resolveTarget(conf clientConfiguration.Configuration, address string) (netip.AddrPort, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		target, ok, err := conf.Peer()
		if err != nil {
			return netip.AddrPort{}, err
		}
		if !ok {
			return netip.AddrPort{}, ErrNoServer
		}
		return target, nil
	}
	if addrPort, err := netip.ParseAddrPort(address); err == nil {
		return network.AddrPortFrom(addrPort.Addr(), addrPort.Port()), nil
	}
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("%w %q", clientConfiguration.ErrInvalidAddress, address)
	}
	return network.AddrPortFrom(addr, 0), nil
}

func (r *Runner) Leave() error {
	return r.deps.Manager().RequestLeave()
}

func (r *Runner) SetSubState(sub app.GameSubState) error {
	return r.deps.Machine().SetSubState(sub)
}

func (r *Runner) Snapshot() sessionClient.Snapshot {
	return r.deps.Manager().Snapshot()
}

func (r *Runner) AppState() app.State {
	return r.deps.Machine().Current()
}

func (r *Runner) LastFailure() error {
	return r.deps.Manager().LastFailure()
}

func (r *Runner) EntityCount() int {
	return r.deps.Entities().Len()
}

var _ tui.ClientController = (*Runner)(nil)
