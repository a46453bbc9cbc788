package connect_token

import "errors"

var (
	ErrInvalidLength     = errors.New("connect token has invalid length")
	ErrMalformedHeader   = errors.New("connect token header is malformed")
	ErrInvalidAddress    = errors.New("connect token carries an invalid server address")
	ErrNoServerAddresses = errors.New("connect token needs at least one server address")
	ErrTooManyAddresses  = errors.New("connect token carries too many server addresses")
	ErrUserDataTooLarge  = errors.New("connect token user data is too large")
	ErrProtocolMismatch  = errors.New("connect token protocol id mismatch")
	ErrExpired           = errors.New("connect token expired")
	ErrTampered          = errors.New("connect token private section failed authentication")
)
