package linespec

import "errors"

// Parse errors
var (
	ErrInvalidLine       = errors.New("invalid GPIO line")
	ErrUnknownParameter  = errors.New("unknown parameter")
	ErrInvalidValue      = errors.New("invalid line value")
	ErrInvalidAssignment = errors.New("invalid assignment")
	ErrInvalidEdge       = errors.New("invalid edge")
)
