package tts

import (
	"context"
	"fmt"
	"time"
)

// MockProvider fabricates audio after a fixed delay. FailWhen, when set,
// selects texts that should fail.
type MockProvider struct {
	Latency  time.Duration
	FailWhen func(text string) bool
}

// NewMockProvider returns a provider that fabricates audio after a short delay.
func NewMockProvider(latency time.Duration) *MockProvider {
	return &MockProvider{Latency: latency}
}

func (m *MockProvider) Synthesize(ctx context.Context, text string, opts Options) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(m.Latency):
	}
	if text == "" {
		return nil, &ProviderError{Provider: "mock", Message: "text must not be empty"}
	}
	if m.FailWhen != nil && m.FailWhen(text) {
		return nil, &ProviderError{Provider: "mock", StatusCode: 500, Message: "synthesis failed"}
	}
	speed := "normal"
	if opts.Slow {
		speed = "slow"
	}
	return []byte(fmt.Sprintf("ID3mock|%s|%s|%s", opts.Lang, speed, text)), nil
}
