package interactive_commands

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
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

func TestDispatcher_Dispatch(t *testing.T) {
	d := NewDispatcher(&recordingLogger{})
	d.Handle("join", func([]string) error { return nil })
	d.Handle("leave", func([]string) error {
		return errors.New("not connected")
	})

	tests := []struct {
		name    string
		line    string
		wantErr string
		quit    bool
	}{
		{name: "empty", line: "   "},
		{name: "with args", line: "join 10.0.0.1:16565"},
		{name: "case insensitive", line: "JOIN"},
		{name: "handler error", line: "leave", wantErr: "not connected"},
		{name: "unknown", line: "fly", wantErr: `unknown command "fly"`},
		{name: "quit", line: "quit", quit: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.Dispatch(tt.line)
			switch {
			case tt.quit:
				if !errors.Is(err, ErrQuit) {
					t.Fatalf("err = %v, want ErrQuit", err)
				}
			case tt.wantErr != "":
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
			case err != nil:
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestDispatcher_PassesArguments(t *testing.T) {
	var got []string
	d := NewDispatcher(&recordingLogger{})
	d.Handle("join", func(args []string) error {
		got = args
		return nil
	})
	if err := d.Dispatch("  join   10.0.0.1:16565  extra "); err != nil {
		t.Fatal(err)
	}
	if want := []string{"10.0.0.1:16565", "extra"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("args = %q, want %q", got, want)
	}
}

func TestDispatcher_Usage(t *testing.T) {
	d := NewDispatcher(&recordingLogger{})
	d.Handle("leave", func([]string) error { return nil })
	d.Handle("join", func([]string) error { return nil })
	if got, want := d.Usage(), "commands: join, leave, quit"; got != want {
		t.Fatalf("Usage = %q, want %q", got, want)
	}
}

func TestDispatcher_ListenStopsOnQuit(t *testing.T) {
	logger := &recordingLogger{}
	d := NewDispatcher(logger)
	var joins int
	d.Handle("join", func([]string) error {
		joins++
		return nil
	})

	err := d.Listen(context.Background(), strings.NewReader("join\nbogus\nquit\njoin\n"))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if joins != 1 {
		t.Fatalf("joins = %d, want 1", joins)
	}
	if !logger.contains(`unknown command "bogus"`) {
		t.Fatalf("unknown command was not logged: %q", logger.lines)
	}
}

func TestDispatcher_ListenWaitsForContextAfterEOF(t *testing.T) {
	d := NewDispatcher(&recordingLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- d.Listen(ctx, strings.NewReader(""))
	}()

	select {
	case <-done:
		t.Fatal("Listen returned before the context ended")
	case <-time.After(50 * time.Millisecond):
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Listen: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after cancel")
	}
}
