package llm

import (
	"context"
	"errors"
)

var (
	// ErrEmptyResponse is returned when the model answers with nothing
	// but whitespace.
	ErrEmptyResponse = errors.New("empty response from model")
	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("analyzer unavailable")
)

// Image is an encoded picture sent to a vision model.
type Image struct {
	Data     []byte
	MIMEType string // e.g. "image/png"
}

// Provider is the interface for vision model backends
type Provider interface {
	// Generate sends one image and a text prompt, returning the model's raw text
	Generate(ctx context.Context, image Image, prompt string) (string, error)

	// Ping checks the backend is reachable and the model is usable
	Ping(ctx context.Context) error

	// Name returns the provider name (e.g., "ollama", "openai", "bedrock")
	Name() string
}

// Request is one document analysis.
type Request struct {
	Image        Image
	FilenameHint string // original file name, offered to the model as a hint
	Receipt      bool
}
