package server

import (
	"errors"
	"testing"
	"time"
)

type countingReader struct {
	count int
	err   error
}

func (m *countingReader) read() (*Configuration, error) {
	m.count++
	if m.err != nil {
		return nil, m.err
	}
	return &Configuration{MaxPlayers: uint32(m.count)}, nil
}

func TestTTLReader_Caching(t *testing.T) {
	mr := &countingReader{}
	r := NewTTLReader(mr, 50*time.Millisecond)

	if _, err := r.read(); err != nil {
		t.Fatalf("first read error: %v", err)
	}
	if _, err := r.read(); err != nil {
		t.Fatalf("second read error: %v", err)
	}
	if mr.count != 1 {
		t.Fatalf("expected cached read without underlying call, got %d", mr.count)
	}

	time.Sleep(60 * time.Millisecond)
	if _, err := r.read(); err != nil {
		t.Fatalf("third read error: %v", err)
	}
	if mr.count != 2 {
		t.Fatalf("expected underlying read after TTL expire, got %d", mr.count)
	}
}

func TestTTLReader_ReturnsCopies(t *testing.T) {
	r := NewTTLReader(&countingReader{}, time.Minute)
	first, _ := r.read()
	first.MaxPlayers = 99
	second, _ := r.read()
	if second.MaxPlayers != 1 {
		t.Fatalf("cache must not be mutated through returned values, got %d", second.MaxPlayers)
	}
}

func TestTTLReader_InvalidateCache(t *testing.T) {
	mr := &countingReader{}
	r := NewTTLReader(mr, time.Minute)
	_, _ = r.read()
	r.InvalidateCache()
	conf, _ := r.read()
	if mr.count != 2 || conf.MaxPlayers != 2 {
		t.Fatalf("expected a fresh read, got count %d", mr.count)
	}
}

func TestTTLReader_ReadError(t *testing.T) {
	mr := &countingReader{err: errors.New("read fail")}
	r := NewTTLReader(mr, time.Minute)

	if _, err := r.read(); err == nil || err.Error() != "read fail" {
		t.Fatalf("expected read fail error, got %v", err)
	}
	if _, err := r.read(); err == nil || mr.count != 2 {
		t.Fatal("errors must not be cached")
	}
}
