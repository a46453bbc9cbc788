package server

import (
	"sync"
	"time"
)

type TTLReader struct {
	reader Reader
	ttl    time.Duration

	mu             sync.Mutex
	cache          *Configuration
	cacheExpiresAt time.Time
}

func NewTTLReader(reader Reader, ttl time.Duration) *TTLReader {
	return &TTLReader{
		reader: reader,
		ttl:    ttl,
	}
}

func (t *TTLReader) read() (*Configuration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cache != nil && time.Now().Before(t.cacheExpiresAt) {
		copied := *t.cache
		return &copied, nil
	}

	configuration, err := t.reader.read()
	if err != nil {
		return nil, err
	}

	t.cache = configuration
	t.cacheExpiresAt = time.Now().Add(t.ttl)
	copied := *configuration
	return &copied, nil
}

// InvalidateCache forces a re-read on next access.
func (t *TTLReader) InvalidateCache() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache = nil
	t.cacheExpiresAt = time.Time{}
}
