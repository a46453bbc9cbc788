package client

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"testing"

	"avb/application/appstate"
	"avb/domain/app"
	"avb/domain/credential"
	"avb/domain/network"
	"avb/domain/session"
)

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

type fakeTransport struct {
	mu          sync.Mutex
	opened      []Attempt
	contexts    []context.Context
	closed      []uint64
	completions chan<- Completion
}

func (f *fakeTransport) Open(ctx context.Context, attempt Attempt, completions chan<- Completion) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, attempt)
	f.contexts = append(f.contexts, ctx)
	f.completions = completions
}

func (f *fakeTransport) Close(generation uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, generation)
}

func (f *fakeTransport) deliver(c Completion) {
	f.completions <- c
}

func (f *fakeTransport) last() Attempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened[len(f.opened)-1]
}

type recordingPublisher struct {
	events []session.Event
}

func (p *recordingPublisher) Publish(e session.Event) {
	p.events = append(p.events, e)
}

func (p *recordingPublisher) names() []string {
	names := make([]string, len(p.events))
	for i, e := range p.events {
		names[i] = e.Name()
	}
	return names
}

type fixture struct {
	manager   *Manager
	transport *fakeTransport
	machine   *appstate.Machine
	entities  *appstate.Entities
	events    *recordingPublisher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	entities := appstate.NewEntities()
	f := fixture{
		transport: &fakeTransport{},
		entities:  entities,
		machine:   appstate.NewMachine(entities, nopLogger{}),
		events:    &recordingPublisher{},
	}
	f.manager = NewManager(f.transport, f.machine, f.events, nopLogger{})
	if err := f.manager.Spawn(); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	return f
}

var peer = netip.MustParseAddrPort("203.0.113.5:16565")

func zeroKeyCredential(t *testing.T) credential.Credential {
	t.Helper()
	cred, err := credential.Build(credential.PreSharedKeyMechanism, peer, 42, make([]byte, credential.KeySize), network.ProtocolID)
	if err != nil {
		t.Fatal(err)
	}
	return cred
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestManager_SpawnOnlyOnce(t *testing.T) {
	f := newFixture(t)
	if err := f.manager.Spawn(); !errors.Is(err, ErrEndpointAlreadyExists) {
		t.Fatalf("expected ErrEndpointAlreadyExists, got %v", err)
	}
	if !f.manager.Snapshot().HasEndpoint {
		t.Fatal("first endpoint must survive")
	}
}

func TestManager_JoinWithoutEndpoint(t *testing.T) {
	m := NewManager(&fakeTransport{}, appstate.NewMachine(appstate.NewEntities(), nopLogger{}), &recordingPublisher{}, nopLogger{})
	if err := m.RequestJoin(zeroKeyCredential(t), peer); !errors.Is(err, ErrNoEndpoint) {
		t.Fatalf("expected ErrNoEndpoint, got %v", err)
	}
	if err := m.RequestLeave(); !errors.Is(err, ErrNoEndpoint) {
		t.Fatalf("expected ErrNoEndpoint, got %v", err)
	}
}

func TestManager_JoinAcceptedEntersGame(t *testing.T) {
	f := newFixture(t)
	cred := zeroKeyCredential(t)

	if err := f.manager.RequestJoin(cred, peer); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	snap := f.manager.Snapshot()
	if snap.State != session.Authenticating || snap.Target != peer || snap.ClientID != 42 {
		t.Fatalf("unexpected snapshot after join %+v", snap)
	}
	if f.machine.Current() != app.MainMenu() {
		t.Fatal("application must stay in MainMenu while authenticating")
	}

	attempt := f.transport.last()
	if attempt.Address != peer || attempt.Credential != cred {
		t.Fatalf("unexpected attempt %+v", attempt)
	}

	f.transport.deliver(Completion{Generation: attempt.Generation, Kind: Accepted, SessionID: "s-1"})
	f.manager.Tick()

	snap = f.manager.Snapshot()
	if snap.State != session.Connected || snap.SessionID != "s-1" {
		t.Fatalf("expected Connected, got %+v", snap)
	}
	if f.machine.Current() != app.InGame(app.Playing) {
		t.Fatalf("expected InGame(Playing), got %s", f.machine.Current())
	}
	if !equalNames(f.events.names(), []string{"JoinRequested", "JoinSucceeded"}) {
		t.Fatalf("unexpected events %v", f.events.names())
	}
}

func TestManager_JoinWhileActiveIsRejected(t *testing.T) {
	f := newFixture(t)
	cred := zeroKeyCredential(t)
	if err := f.manager.RequestJoin(cred, peer); err != nil {
		t.Fatal(err)
	}
	before := f.manager.Snapshot()

	other := netip.MustParseAddrPort("198.51.100.7:16565")
	if err := f.manager.RequestJoin(cred, other); !errors.Is(err, ErrEndpointAlreadyActive) {
		t.Fatalf("expected ErrEndpointAlreadyActive, got %v", err)
	}
	if f.manager.Snapshot() != before {
		t.Fatal("rejected join must leave state untouched")
	}
	if len(f.transport.opened) != 1 {
		t.Fatal("rejected join must not open a link")
	}

	f.transport.deliver(Completion{Generation: before.Generation, Kind: Accepted})
	f.manager.Tick()
	if err := f.manager.RequestJoin(cred, other); !errors.Is(err, ErrEndpointAlreadyActive) {
		t.Fatalf("expected ErrEndpointAlreadyActive while Connected, got %v", err)
	}
}

func TestManager_JoinFailureRevertsToIdle(t *testing.T) {
	f := newFixture(t)
	if err := f.manager.RequestJoin(zeroKeyCredential(t), peer); err != nil {
		t.Fatal(err)
	}
	cause := errors.New("server is full")
	f.transport.deliver(Completion{Generation: f.transport.last().Generation, Kind: Rejected, Err: cause})
	f.manager.Tick()

	snap := f.manager.Snapshot()
	if snap.State != session.Idle {
		t.Fatalf("expected Idle, got %s", snap.State)
	}
	if _, ok := f.manager.Target(); ok {
		t.Fatal("target must be cleared")
	}
	if f.manager.Credential() != nil {
		t.Fatal("credential must be detached")
	}
	if f.machine.Current() != app.MainMenu() {
		t.Fatal("application state must remain MainMenu")
	}
	failure := f.manager.LastFailure()
	if !errors.Is(failure, ErrAuthenticationFailed) || !errors.Is(failure, cause) {
		t.Fatalf("unexpected failure %v", failure)
	}
	last := f.events.events[len(f.events.events)-1]
	failed, ok := last.(session.JoinFailed)
	if !ok || failed.Address != peer || !errors.Is(failed.Reason, ErrAuthenticationFailed) {
		t.Fatalf("expected JoinFailed, got %#v", last)
	}

	if err := f.manager.RequestJoin(zeroKeyCredential(t), peer); err != nil {
		t.Fatalf("a new join must be possible after a failure: %v", err)
	}
	if f.manager.LastFailure() != nil {
		t.Fatal("a new join clears the last failure")
	}
}

func TestManager_LeaveFromIdleIsNoop(t *testing.T) {
	f := newFixture(t)
	if err := f.manager.RequestLeave(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := f.manager.RequestLeave(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(f.events.events) != 0 || len(f.transport.closed) != 0 {
		t.Fatal("leave from Idle must not have side effects")
	}
}

func TestManager_LeaveWhileConnected(t *testing.T) {
	f := newFixture(t)
	if err := f.manager.RequestJoin(zeroKeyCredential(t), peer); err != nil {
		t.Fatal(err)
	}
	gen := f.transport.last().Generation
	f.transport.deliver(Completion{Generation: gen, Kind: Accepted})
	f.manager.Tick()
	f.entities.Spawn()

	if err := f.manager.RequestLeave(); err != nil {
		t.Fatalf("RequestLeave: %v", err)
	}

	if f.manager.Snapshot().State != session.Idle {
		t.Fatal("expected Idle")
	}
	if _, ok := f.manager.Target(); ok {
		t.Fatal("target must be cleared")
	}
	if f.machine.Current() != app.MainMenu() {
		t.Fatal("expected MainMenu")
	}
	if f.entities.Len() != 0 {
		t.Fatal("in-game entities must be despawned")
	}
	if len(f.transport.closed) != 1 || f.transport.closed[0] != gen {
		t.Fatalf("expected transport close of generation %d, got %v", gen, f.transport.closed)
	}
	want := []string{"JoinRequested", "JoinSucceeded", "LeaveRequested", "SessionClosed"}
	if !equalNames(f.events.names(), want) {
		t.Fatalf("unexpected events %v", f.events.names())
	}
}

func TestManager_LeaveDuringAuthenticationDropsLateCompletion(t *testing.T) {
	f := newFixture(t)
	if err := f.manager.RequestJoin(zeroKeyCredential(t), peer); err != nil {
		t.Fatal(err)
	}
	stale := f.transport.last().Generation
	ctx := f.transport.contexts[0]

	if err := f.manager.RequestLeave(); err != nil {
		t.Fatal(err)
	}
	if ctx.Err() == nil {
		t.Fatal("leave must cancel the in-flight attempt")
	}

	f.transport.deliver(Completion{Generation: stale, Kind: Accepted, SessionID: "late"})
	f.manager.Tick()

	if f.manager.Snapshot().State != session.Idle {
		t.Fatal("late completion must not resurrect the session")
	}
	if f.machine.Current() != app.MainMenu() {
		t.Fatal("late completion must not enter the game")
	}
}

func TestManager_StaleCompletionAfterRejoin(t *testing.T) {
	f := newFixture(t)
	cred := zeroKeyCredential(t)
	if err := f.manager.RequestJoin(cred, peer); err != nil {
		t.Fatal(err)
	}
	first := f.transport.last().Generation
	if err := f.manager.RequestLeave(); err != nil {
		t.Fatal(err)
	}
	if err := f.manager.RequestJoin(cred, peer); err != nil {
		t.Fatal(err)
	}
	second := f.transport.last().Generation
	if first == second {
		t.Fatal("each attempt needs its own generation")
	}

	f.transport.deliver(Completion{Generation: first, Kind: Rejected, Err: errors.New("old")})
	f.manager.Tick()
	if f.manager.Snapshot().State != session.Authenticating {
		t.Fatal("stale rejection must be dropped")
	}

	f.transport.deliver(Completion{Generation: second, Kind: Accepted})
	f.manager.Tick()
	if f.manager.Snapshot().State != session.Connected {
		t.Fatal("current completion must apply")
	}
}

func TestManager_ServerClosedSession(t *testing.T) {
	f := newFixture(t)
	if err := f.manager.RequestJoin(zeroKeyCredential(t), peer); err != nil {
		t.Fatal(err)
	}
	gen := f.transport.last().Generation
	f.transport.deliver(Completion{Generation: gen, Kind: Accepted})
	f.manager.Tick()

	f.transport.deliver(Completion{Generation: gen, Kind: Closed, Err: errors.New("kicked")})
	f.manager.Tick()

	if f.manager.Snapshot().State != session.Idle {
		t.Fatal("expected Idle after server disconnect")
	}
	if f.machine.Current() != app.MainMenu() {
		t.Fatal("expected MainMenu after server disconnect")
	}
	names := f.events.names()
	if names[len(names)-1] != "SessionClosed" {
		t.Fatalf("expected SessionClosed, got %v", names)
	}
}

func TestManager_RejectsInvalidJoinInput(t *testing.T) {
	f := newFixture(t)
	if err := f.manager.RequestJoin(nil, peer); !errors.Is(err, credential.ErrInvalidCredentialInput) {
		t.Fatalf("expected ErrInvalidCredentialInput, got %v", err)
	}
	if err := f.manager.RequestJoin(zeroKeyCredential(t), netip.AddrPort{}); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}
	if f.manager.Snapshot().State != session.Idle {
		t.Fatal("invalid input must leave the endpoint idle")
	}
}

func TestManager_TickWithoutCompletions(t *testing.T) {
	f := newFixture(t)
	f.manager.Tick()
	if f.manager.Snapshot().State != session.Idle {
		t.Fatal("empty tick must not change state")
	}
}
