package token_response

import (
	"errors"
	"fmt"
)

var (
	ErrMissingField    = errors.New("missing field")
	ErrDuplicateField  = errors.New("duplicate field")
	ErrUnknownField    = errors.New("unknown field")
	ErrMalformedRecord = errors.New("malformed record")
	ErrInvalidToken    = errors.New("invalid token")
)

// DecodeError describes why a token issuance response was rejected.
type DecodeError struct {
	Field string
	Err   error
}

func newDecodeError(field string, err error) *DecodeError {
	return &DecodeError{Field: field, Err: err}
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("token issuance response: %v", e.Err)
	}
	return fmt.Sprintf("token issuance response: field %q: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
