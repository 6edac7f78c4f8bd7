package tts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/loqalabs/loqa-narrate/internal/config"
)

// New builds the provider selected by cfg.Mode.
func New(ctx context.Context, cfg config.TTSConfig, logger *slog.Logger) (Provider, error) {
	switch cfg.Mode {
	case "", "mock":
		logger.Info("using mock tts provider")
		return NewMockProvider(time.Duration(cfg.MockLatencyMS) * time.Millisecond), nil
	case "http":
		logger.Info("using http tts provider", slog.String("endpoint", cfg.Endpoint))
		return NewHTTPProvider(cfg.Endpoint, time.Duration(cfg.TimeoutMS)*time.Millisecond), nil
	case "exec":
		logger.Info("using exec tts provider", slog.String("command", cfg.Command))
		return NewExecProvider(cfg.Command)
	case "google":
		logger.Info("using google tts provider", slog.String("voice", cfg.Voice))
		return NewGoogleProvider(ctx, cfg.Endpoint, cfg.Voice)
	default:
		return nil, fmt.Errorf("unsupported tts mode %q", cfg.Mode)
	}
}
