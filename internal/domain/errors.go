package domain

import "errors"

var (
	ErrSessionNotFound        = errors.New("session not found")
	ErrSessionExists          = errors.New("session already exists")
	ErrRuntimeSessionNotFound = errors.New("runtime session not found")
	ErrRuntime                = errors.New("agent runtime failure")
	ErrInvalidPlatform        = errors.New("invalid platform")
	ErrInvalidSender          = errors.New("invalid sender")
	ErrInvalidPage            = errors.New("invalid page request")
	ErrInvalidRequest         = errors.New("invalid request")
	ErrUnsupportedFormat      = errors.New("unsupported file format")
	ErrInvalidPayload         = errors.New("invalid structured payload")
)
