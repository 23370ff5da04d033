package domain

import "errors"

// Sentinel errors surfaced across layer boundaries; callers match them with
// errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrNoMapping       = errors.New("no active platform mapping")
)
