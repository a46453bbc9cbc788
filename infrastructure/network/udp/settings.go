package udp

import "time"

// Settings tune handshake retries and liveness of established links.
type Settings struct {
	// HandshakeTimeout bounds a join attempt from first request to acceptance.
	HandshakeTimeout time.Duration
	// RetryInterval is how often an unanswered request is resent.
	RetryInterval time.Duration
	// KeepAliveInterval is how often each side proves it is still there.
	KeepAliveInterval time.Duration
	// LinkTimeout closes a link that received nothing for this long.
	LinkTimeout time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		HandshakeTimeout:  5 * time.Second,
		RetryInterval:     250 * time.Millisecond,
		KeepAliveInterval: time.Second,
		LinkTimeout:       10 * time.Second,
	}
}

// disconnectRedundancy is how many copies of a disconnect packet are sent.
const disconnectRedundancy = 3
