package model

import "errors"

// Error taxonomy shared by the service and transport layers.
// Callers wrap these with fmt.Errorf("...: %w", ...) and match with errors.Is.
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrPersistence         = errors.New("persistence error")
)
