package api

import "errors"

// Request errors
var (
	ErrInvalidOffset  = errors.New("invalid line offset")
	ErrInvalidRequest = errors.New("invalid request body")
	ErrUnknownChip    = errors.New("no such chip")
)

// Server setup errors
var (
	ErrMQTTInitFailed = errors.New("failed to create mqtt client")
	ErrWatchConfig    = errors.New("invalid watch configuration")
)
