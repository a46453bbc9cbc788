package interactive_commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"avb/application/logging"
)

// ErrQuit is returned by a handler to end Listen.
var ErrQuit = errors.New("quit requested")

const quitCmd = "quit"

// Handler runs one command with the words that followed it.
type Handler func(args []string) error

// Dispatcher reads line-oriented commands and routes them to handlers.
type Dispatcher struct {
	handlers map[string]Handler
	logger   logging.Logger
}

func NewDispatcher(logger logging.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Handle registers h for name. Names are matched case-insensitively.
func (d *Dispatcher) Handle(name string, h Handler) {
	d.handlers[strings.ToLower(name)] = h
}

// Usage lists the registered commands.
func (d *Dispatcher) Usage() string {
	names := make([]string, 0, len(d.handlers)+1)
	for name := range d.handlers {
		names = append(names, name)
	}
	names = append(names, quitCmd)
	sort.Strings(names)
	return "commands: " + strings.Join(names, ", ")
}

// Dispatch runs a single command line. Empty lines are ignored.
func (d *Dispatcher) Dispatch(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name := strings.ToLower(fields[0])
	if name == quitCmd {
		return ErrQuit
	}
	h, ok := d.handlers[name]
	if !ok {
		return fmt.Errorf("unknown command %q; %s", fields[0], d.Usage())
	}
	return h(fields[1:])
}

// Listen dispatches commands read from in until ctx is done or a handler
// returns ErrQuit. Once in is exhausted it waits for ctx.
func (d *Dispatcher) Listen(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	d.logger.Printf("%s", d.Usage())
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-scanErr:
			if err != nil {
				d.logger.Printf("error reading commands: %v", err)
			}
			<-ctx.Done()
			return nil
		case line := <-lines:
			err := d.Dispatch(line)
			if errors.Is(err, ErrQuit) {
				return nil
			}
			if err != nil {
				d.logger.Printf("%v", err)
			}
		}
	}
}
