package server

import "errors"

var (
	ErrProtocolMismatch    = errors.New("protocol id mismatch")
	ErrMechanismNotAllowed = errors.New("credential mechanism not allowed")
	ErrInvalidCredential   = errors.New("invalid credential")
	ErrServerFull          = errors.New("server is full")
	ErrDuplicateClient     = errors.New("client is already connected")
	ErrBindFailed          = errors.New("failed to bind listening endpoint")
	ErrAlreadyStarted      = errors.New("server already started")
	ErrNotFound            = errors.New("session not found")
)
