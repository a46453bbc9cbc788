package tui

import (
	"strings"
	"sync"
)

const defaultLogCapacity = 256

// LogFeed exposes the most recent log lines to a dashboard.
type LogFeed interface {
	Tail(limit int) []string
}

// LogBuffer is an io.Writer keeping the last lines written to it. Loggers
// write here while a dashboard owns the terminal.
type LogBuffer struct {
	mu       sync.Mutex
	capacity int
	lines    []string
	head     int
	count    int
	partial  string
}

func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = defaultLogCapacity
	}
	return &LogBuffer{
		capacity: capacity,
		lines:    make([]string, capacity),
	}
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	chunk := string(p)
	for len(chunk) > 0 {
		i := strings.IndexByte(chunk, '\n')
		if i < 0 {
			b.partial += chunk
			break
		}
		b.append(strings.TrimRight(b.partial+chunk[:i], "\r"))
		b.partial = ""
		chunk = chunk[i+1:]
	}
	return len(p), nil
}

// Tail returns up to limit lines, oldest first.
func (b *LogBuffer) Tail(limit int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if limit <= 0 || b.count == 0 {
		return nil
	}
	n := min(b.count, limit)
	out := make([]string, n)
	start := (b.head - n + b.capacity) % b.capacity
	if start+n <= b.capacity {
		copy(out, b.lines[start:start+n])
	} else {
		first := b.capacity - start
		copy(out, b.lines[start:])
		copy(out[first:], b.lines[:n-first])
	}
	return out
}

func (b *LogBuffer) append(line string) {
	b.lines[b.head] = line
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
}
