package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	sessionServer "avb/application/session/server"
	"avb/domain/app"
	serverConfiguration "avb/infrastructure/PAL/configuration/server"
	"avb/infrastructure/issuance"
	"avb/infrastructure/telemetry/sessionstats"
	"avb/presentation/interactive_commands"
	"avb/presentation/ui/tui"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

const (
	eventBuffer     = 256
	reapInterval    = time.Second
	watchInterval   = 5 * time.Second
	summaryInterval = time.Minute
	shutdownTimeout = 5 * time.Second
	kickReason      = "disconnected by the host"
)

type DashboardFunc func(ctx context.Context, view tui.ServerView, summary func() string, logs tui.LogFeed) error

type Runner struct {
	deps      AppDependencies
	uiMode    app.UIMode
	issuer    issuance.Config
	logs      tui.LogFeed
	input     io.Reader
	dashboard DashboardFunc
	meter     metric.Meter
	collector *sessionstats.Collector
}

func NewRunner(deps AppDependencies, uiMode app.UIMode, issuer issuance.Config, logs tui.LogFeed, input io.Reader) *Runner {
	return &Runner{
		deps:      deps,
		uiMode:    uiMode,
		issuer:    issuer,
		logs:      logs,
		input:     input,
		dashboard: tui.RunServer,
		meter:     otel.Meter("avb/server"),
		collector: sessionstats.NewCollector(),
	}
}

// Run serves until ctx is done or the user quits. A bind failure is returned
// before anything is served.
func (r *Runner) Run(ctx context.Context) error {
	conf := r.deps.Configuration()
	bind, err := conf.BindAddress()
	if err != nil {
		return err
	}
	policy, err := conf.Policy()
	if err != nil {
		return err
	}

	events, unsubscribe := r.deps.Bus().Subscribe(eventBuffer)
	defer unsubscribe()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	manager := r.deps.Manager()
	if err := manager.Start(gctx, bind, policy, conf.MaxPlayers); err != nil {
		return err
	}

	exporter, err := sessionstats.NewExporter(r.meter, manager, r.collector)
	if err != nil {
		cancel()
		_ = manager.Wait()
		return fmt.Errorf("failed to register session metrics: %w", err)
	}
	defer func() {
		if closeErr := exporter.Close(); closeErr != nil {
			r.deps.Logger().Printf("failed to unregister session metrics: %v", closeErr)
		}
	}()

	g.Go(manager.Wait)
	g.Go(func() error {
		r.collector.Start(gctx, events)
		return nil
	})
	if conf.IdleTimeout > 0 {
		g.Go(func() error {
			sessionServer.RunIdleReaperLoop(gctx, manager, conf.IdleTimeout, reapInterval, r.deps.Logger())
			return nil
		})
	}
	if r.deps.ConfigurationManager() != nil {
		watcher := serverConfiguration.NewConfigWatcher(r.deps.ConfigurationManager(), manager, watchInterval, r.deps.Logger())
		g.Go(func() error {
			watcher.Watch(gctx)
			return nil
		})
	}
	if r.issuer.Enabled {
		g.Go(func() error {
			return r.serveIssuer(gctx, conf, manager.LocalAddr())
		})
	}
	g.Go(func() error {
		defer cancel()
		return r.control(gctx)
	})

	err = g.Wait()
	r.deps.Logger().Printf("server stopped: %s", r.summary())
	return err
}

func (r *Runner) summary() string {
	return sessionstats.Summary(r.deps.Manager(), r.collector.Snapshot())
}

func (r *Runner) control(ctx context.Context) error {
	if r.uiMode == app.TUI {
		return r.dashboard(ctx, r.deps.Manager(), r.summary, r.logs)
	}

	go r.logSummaries(ctx)
	return r.commands().Listen(ctx, r.input)
}

func (r *Runner) logSummaries(ctx context.Context) {
	ticker := time.NewTicker(summaryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.deps.Logger().Printf("%s", r.summary())
		}
	}
}

func (r *Runner) commands() *interactive_commands.Dispatcher {
	manager := r.deps.Manager()
	logger := r.deps.Logger()
	d := interactive_commands.NewDispatcher(logger)
	d.Handle("status", func([]string) error {
		logger.Printf("listening on %v, %s", manager.LocalAddr(), r.summary())
		return nil
	})
	d.Handle("players", func([]string) error {
		peers := manager.Peers()
		if len(peers) == 0 {
			logger.Printf("nobody connected")
		}
		for _, p := range peers {
			logger.Printf("%v client %d via %s, session %s", p.Address(), p.ClientID(), p.Mechanism(), p.ID())
		}
		return nil
	})
	d.Handle("kick", func(args []string) error {
		if len(args) != 1 {
			return errors.New("usage: kick <ip:port>")
		}
		addr, err := netip.ParseAddrPort(args[0])
		if err != nil {
			return fmt.Errorf("invalid address %q: %w", args[0], err)
		}
		return manager.Disconnect(addr, kickReason)
	})
	return d
}

// serveIssuer runs the development token issuer until ctx is done.
func (r *Runner) serveIssuer(ctx context.Context, conf serverConfiguration.Configuration, local netip.AddrPort) error {
	if !conf.Authentication.AcceptSignedToken {
		return errors.New("token issuer enabled but accept_signed_token is off")
	}
	key, err := conf.TokenKey()
	if err != nil {
		return err
	}
	game := issuerGameAddress(conf, local)
	issuer := issuance.NewIssuer(key, game, r.issuer, r.deps.Logger())

	listener, err := net.Listen("tcp", r.issuer.Listen)
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}
	srv := &http.Server{
		Handler:           issuer,
		ReadHeaderTimeout: r.issuer.Timeout,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	r.deps.Logger().Printf("token issuer listening on %v for game server %v", listener.Addr(), game)
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("token issuer: %w", err)
	}
	return nil
}

// issuerGameAddress is the address written into issued tokens. Tokens must
// name a concrete address, so an unspecified bind falls back to loopback.
func issuerGameAddress(conf serverConfiguration.Configuration, local netip.AddrPort) netip.AddrPort {
	if public := strings.TrimSpace(conf.Authentication.PublicAddress); public != "" {
		if addr, err := netip.ParseAddrPort(public); err == nil {
			return addr
		}
	}
	if local.Addr().IsUnspecified() {
		loopback := netip.IPv6Loopback()
		if local.Addr().Is4() {
			loopback = netip.MustParseAddr("127.0.0.1")
		}
		return netip.AddrPortFrom(loopback, local.Port())
	}
	return local
}
