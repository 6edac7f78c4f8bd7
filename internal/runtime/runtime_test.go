package runtime

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loqalabs/loqa-narrate/internal/config"
	"github.com/loqalabs/loqa-narrate/internal/episode"
	"github.com/loqalabs/loqa-narrate/internal/pipeline"
	"github.com/loqalabs/loqa-narrate/internal/storage"
	"github.com/loqalabs/loqa-narrate/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	NewLogger(&buf, "chatty").Info("fallback")
	assert.Contains(t, buf.String(), "fallback")
}

func TestNewArtifactStore(t *testing.T) {
	cfg := config.Default().Synthesis
	cfg.OutputDir = t.TempDir()
	s, err := NewArtifactStore(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &storage.FileStore{}, s)

	cfg.Storage = "nats"
	_, err = NewArtifactStore(cfg, nil)
	require.Error(t, err)
}

func TestNewGeneratorFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Segment.MaxChunkChars = 40
	cfg.Synthesis.PacingMS = 0
	cfg.TTS.Lang = "de"

	dir := t.TempDir()
	files, err := storage.NewFileStore(dir)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	gen := NewGenerator(cfg, tts.NewMockProvider(0), files, pipeline.Deps{Episodes: nopRepo{}}, logger)
	resp, err := gen.Generate(context.Background(), pipeline.Request{Text: "Guten Morgen. Wie geht es dir heute? Mir geht es gut, danke."})
	require.NoError(t, err)
	require.Len(t, resp.Chapters, 2)

	audio, err := os.ReadFile(filepath.Join(dir, resp.EpisodeID, "chunk_0000.mp3"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(audio), "ID3mock|de|"))
}

type nopRepo struct{}

func (nopRepo) SaveEpisode(context.Context, episode.Episode) (string, error) { return "rec", nil }

func TestReadyBeforeStart(t *testing.T) {
	r := New(config.Default(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := httptest.NewRecorder()
	r.handleReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	r.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckProvider(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(status)
	}))
	defer srv.Close()

	ctx := context.Background()
	assert.NoError(t, checkProvider(ctx, tts.NewMockProvider(0)))

	provider := tts.NewHTTPProvider(srv.URL, time.Second)
	assert.NoError(t, checkProvider(ctx, provider))

	status = http.StatusServiceUnavailable
	assert.Error(t, checkProvider(ctx, provider))
}
