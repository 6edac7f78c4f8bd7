package tts

import (
	"context"
	"fmt"
)

// Options configure a single synthesis request.
type Options struct {
	// Lang is the target locale, for example "en" or "en-GB".
	Lang string `json:"lang"`
	// Slow requests a halved speaking rate.
	Slow bool `json:"slow"`
	// Host overrides the provider endpoint for providers that support it.
	// It comes from service configuration, never from callers.
	Host string `json:"host,omitempty"`
}

// Provider turns text into encoded audio bytes.
type Provider interface {
	Synthesize(ctx context.Context, text string, opts Options) ([]byte, error)
}

// ProviderError describes a failed synthesis call.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s provider returned status %d: %s", e.Provider, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s provider: %s: %v", e.Provider, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s provider: %s", e.Provider, e.Message)
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }
