package tts

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loqalabs/loqa-narrate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewSelectsMode(t *testing.T) {
	p, err := New(context.Background(), config.TTSConfig{Mode: "mock"}, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &MockProvider{}, p)

	p, err = New(context.Background(), config.TTSConfig{Mode: "http", Endpoint: "http://localhost:9000", TimeoutMS: 1000}, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &HTTPProvider{}, p)

	_, err = New(context.Background(), config.TTSConfig{Mode: "exec"}, discardLogger())
	require.Error(t, err)

	_, err = New(context.Background(), config.TTSConfig{Mode: "espeak"}, discardLogger())
	require.Error(t, err)
}

func TestMockProvider(t *testing.T) {
	m := NewMockProvider(0)
	audio, err := m.Synthesize(context.Background(), "Hello.", Options{Lang: "en", Slow: true})
	require.NoError(t, err)
	assert.Equal(t, "ID3mock|en|slow|Hello.", string(audio))

	m.FailWhen = func(text string) bool { return strings.Contains(text, "bad") }
	_, err = m.Synthesize(context.Background(), "bad chunk", Options{})
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 500, perr.StatusCode)
}

func TestMockProviderHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMockProvider(time.Second).Synthesize(ctx, "Hello.", Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), "synth.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\ncat >/dev/null\n"+body), 0o755))
	return "sh " + path
}

func TestExecProvider(t *testing.T) {
	cmd := writeScript(t, `echo '{"audio_base64":"aGVs"}'
echo '{"audio_base64":"bG8="}'
`)
	p, err := NewExecProvider(cmd)
	require.NoError(t, err)

	audio, err := p.Synthesize(context.Background(), "Hello.", Options{Lang: "en"})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(audio))
}

func TestExecProviderReportsError(t *testing.T) {
	p, err := NewExecProvider(writeScript(t, `echo '{"error":"voice unavailable"}'
`))
	require.NoError(t, err)

	_, err = p.Synthesize(context.Background(), "Hello.", Options{})
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "voice unavailable", perr.Message)
}

func TestExecProviderNoAudio(t *testing.T) {
	p, err := NewExecProvider(writeScript(t, "exit 0\n"))
	require.NoError(t, err)

	_, err = p.Synthesize(context.Background(), "Hello.", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no audio")
}

func TestNewExecProviderRejectsEmptyCommand(t *testing.T) {
	_, err := NewExecProvider("   ")
	require.Error(t, err)
}
