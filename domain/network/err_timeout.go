package network

import "fmt"

// ErrTimeout reports an operation against a peer that did not complete in time.
// It satisfies net.Error with Timeout()==true.
type ErrTimeout struct {
	operation string
	peer      string
	cause     error
}

func NewErrTimeout(operation, peer string, cause error) *ErrTimeout {
	return &ErrTimeout{operation: operation, peer: peer, cause: cause}
}

func (e ErrTimeout) Error() string {
	return fmt.Sprintf("%s with %s timed out: %v", e.operation, e.peer, e.cause)
}
func (e ErrTimeout) Unwrap() error   { return e.cause }
func (e ErrTimeout) Timeout() bool   { return true }
func (e ErrTimeout) Temporary() bool { return false }
