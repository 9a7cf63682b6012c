package domain

import "errors"

var (
	// ErrNotFound indicates resource not found
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidRequest indicates invalid request
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnsupportedFile indicates an upload of an unsupported type
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrNoLLM indicates that no language model is configured
	ErrNoLLM = errors.New("no language model configured")
)
