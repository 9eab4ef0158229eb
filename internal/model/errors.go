package model

import (
	"errors"
)

var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrMissingParameter = errors.New("missing parameter")
	ErrNotImplemented   = errors.New("not implemented")
	ErrUnknownTool      = errors.New("unknown tool type")
)
