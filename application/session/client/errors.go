package client

import "errors"

var (
	ErrEndpointAlreadyExists = errors.New("session endpoint already exists")
	ErrEndpointAlreadyActive = errors.New("session endpoint is already active")
	ErrNoEndpoint            = errors.New("no session endpoint")
	ErrInvalidTarget         = errors.New("invalid target address")
	ErrAuthenticationFailed  = errors.New("authentication failed")
)
