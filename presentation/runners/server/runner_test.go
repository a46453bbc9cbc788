package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	sessionServer "avb/application/session/server"
	"avb/domain/app"
	"avb/domain/credential"
	"avb/domain/network"
	serverConfiguration "avb/infrastructure/PAL/configuration/server"
	"avb/infrastructure/issuance"
	"avb/presentation/ui/tui"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Printf(format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

func (l *recordingLogger) contains(s string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}

type fakeListener struct {
	mu       sync.Mutex
	bindErr  error
	acceptor sessionServer.Acceptor
	kicked   []netip.AddrPort
	serving  chan struct{}
}

func newFakeListener() *fakeListener {
	return &fakeListener{serving: make(chan struct{})}
}

func (f *fakeListener) Bind(address netip.AddrPort) (netip.AddrPort, error) {
	if f.bindErr != nil {
		return netip.AddrPort{}, f.bindErr
	}
	return address, nil
}

func (f *fakeListener) Serve(ctx context.Context, acceptor sessionServer.Acceptor) error {
	f.mu.Lock()
	f.acceptor = acceptor
	f.mu.Unlock()
	close(f.serving)
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeListener) Kick(peer *sessionServer.Peer, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicked = append(f.kicked, peer.Address())
}

// admit presents a pre-shared key request as the network side would.
func (f *fakeListener) admit(t *testing.T, clientID uint64, from string) {
	t.Helper()
	select {
	case <-f.serving:
	case <-time.After(5 * time.Second):
		t.Fatal("listener never started serving")
	}
	f.mu.Lock()
	acceptor := f.acceptor
	f.mu.Unlock()
	_, err := acceptor.Admit(sessionServer.Request{
		Address:    netip.MustParseAddrPort(from),
		ProtocolID: network.ProtocolID,
		Mechanism:  credential.PreSharedKeyMechanism,
		Proof:      proof{clientID: clientID},
	})
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
}

func (f *fakeListener) kickedAddrs() []netip.AddrPort {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]netip.AddrPort(nil), f.kicked...)
}

// proof accepts the all-zero development key.
type proof struct {
	clientID uint64
}

func (p proof) Verify(key [credential.KeySize]byte) (uint64, error) {
	if key != [credential.KeySize]byte{} {
		return 0, errors.New("handshake failed")
	}
	return p.clientID, nil
}

func testConfiguration() serverConfiguration.Configuration {
	conf := *serverConfiguration.NewDefaultConfiguration()
	conf.Address = "127.0.0.1:40000"
	return conf
}

func newTestRunner(
	conf serverConfiguration.Configuration,
	listener *fakeListener,
	mode app.UIMode,
	input io.Reader,
) (*Runner, *recordingLogger) {
	logger := &recordingLogger{}
	deps := NewDependenciesWithListener(conf, nil, listener, logger)
	runner := NewRunner(deps, mode, issuance.Config{}, nil, input)
	runner.meter = sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader())).Meter("test")
	return runner, logger
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunner_Commands(t *testing.T) {
	listener := newFakeListener()
	in, commands := io.Pipe()
	defer commands.Close()
	runner, logger := newTestRunner(testConfiguration(), listener, app.CLI, in)

	done := make(chan error, 1)
	go func() {
		done <- runner.Run(context.Background())
	}()
	listener.admit(t, 7, "10.0.0.7:5000")

	send := func(line string) {
		if _, err := fmt.Fprintln(commands, line); err != nil {
			t.Fatalf("write %q: %v", line, err)
		}
	}
	send("players")
	waitUntil(t, "the player list", func() bool { return logger.contains("10.0.0.7:5000 client 7") })

	send("status")
	waitUntil(t, "the status line", func() bool { return logger.contains("players 1/4") })

	send("kick 10.0.0.9:1")
	waitUntil(t, "the unknown player error", func() bool { return logger.contains("session not found") })

	send("kick 10.0.0.7:5000")
	waitUntil(t, "the kick", func() bool { return len(listener.kickedAddrs()) == 1 })
	if got := runner.deps.Manager().ConnectionCount(); got != 0 {
		t.Fatalf("ConnectionCount = %d after kick", got)
	}

	send("quit")
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after quit")
	}
	if !logger.contains("server stopped: players 0/4, admitted 1") {
		t.Fatalf("missing final summary: %q", logger.lines)
	}
}

func TestRunner_Dashboard(t *testing.T) {
	listener := newFakeListener()
	runner, _ := newTestRunner(testConfiguration(), listener, app.TUI, nil)

	var summary string
	var local netip.AddrPort
	runner.dashboard = func(ctx context.Context, view tui.ServerView, summarize func() string, _ tui.LogFeed) error {
		deadline := time.Now().Add(5 * time.Second)
		for view.ConnectionCount() == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		summary = summarize()
		local = view.LocalAddr()
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- runner.Run(context.Background())
	}()
	listener.admit(t, 1, "10.0.0.1:5000")

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(summary, "players 1/4") {
		t.Fatalf("summary = %q", summary)
	}
	if local != netip.MustParseAddrPort("127.0.0.1:40000") {
		t.Fatalf("LocalAddr = %v", local)
	}
}

func TestRunner_BindFailure(t *testing.T) {
	listener := newFakeListener()
	listener.bindErr = errors.New("address already in use")
	runner, _ := newTestRunner(testConfiguration(), listener, app.CLI, strings.NewReader(""))

	err := runner.Run(context.Background())
	if !errors.Is(err, sessionServer.ErrBindFailed) {
		t.Fatalf("err = %v, want ErrBindFailed", err)
	}
}

func TestRunner_InvalidConfiguration(t *testing.T) {
	conf := testConfiguration()
	conf.Authentication.AcceptPreSharedKey = false
	runner, _ := newTestRunner(conf, newFakeListener(), app.CLI, strings.NewReader(""))

	if err := runner.Run(context.Background()); !errors.Is(err, serverConfiguration.ErrInvalidConfiguration) {
		t.Fatalf("err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestRunner_StopsWithContext(t *testing.T) {
	runner, _ := newTestRunner(testConfiguration(), newFakeListener(), app.CLI, strings.NewReader(""))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runner.Run(ctx)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRunner_IssuerRequiresSignedTokens(t *testing.T) {
	runner, _ := newTestRunner(testConfiguration(), newFakeListener(), app.CLI, strings.NewReader(""))
	runner.issuer = issuance.Config{Enabled: true, Listen: "127.0.0.1:0", TokenLifetime: time.Second, Timeout: time.Second}

	err := runner.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "accept_signed_token") {
		t.Fatalf("err = %v, want the signed token requirement", err)
	}
}

func TestIssuerGameAddress(t *testing.T) {
	tests := []struct {
		name   string
		public string
		local  string
		want   string
	}{
		{name: "public address wins", public: "203.0.113.5:16565", local: "0.0.0.0:16565", want: "203.0.113.5:16565"},
		{name: "concrete bind", local: "192.168.0.2:16565", want: "192.168.0.2:16565"},
		{name: "unspecified ipv4", local: "0.0.0.0:17000", want: "127.0.0.1:17000"},
		{name: "unspecified ipv6", local: "[::]:17000", want: "[::1]:17000"},
		{name: "invalid public ignored", public: "nowhere", local: "10.0.0.1:1", want: "10.0.0.1:1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := testConfiguration()
			conf.Authentication.PublicAddress = tt.public
			got := issuerGameAddress(conf, netip.MustParseAddrPort(tt.local))
			if got != netip.MustParseAddrPort(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}
