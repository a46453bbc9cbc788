package handshake

import "errors"

var (
	// ErrHandshakeFailed is the uniform error for a message that does not
	// authenticate, whatever the underlying cause.
	ErrHandshakeFailed = errors.New("handshake failed")
	ErrOutOfOrder      = errors.New("handshake message out of order")
)
