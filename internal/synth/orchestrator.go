// Package synth turns packed chunks into stored audio artifacts.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loqalabs/loqa-narrate/internal/segment"
	"github.com/loqalabs/loqa-narrate/internal/storage"
	"github.com/loqalabs/loqa-narrate/internal/tts"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const instrumentationName = "github.com/loqalabs/loqa-narrate/synth"

// ErrNoArtifactsProduced is returned when every chunk failed to synthesize.
var ErrNoArtifactsProduced = errors.New("no audio artifacts were produced")

type Config struct {
	// Workers bounds concurrent provider requests. Values below 1 mean 1.
	Workers int
	// Pacing is the minimum spacing between provider requests.
	Pacing         time.Duration
	WordsPerMinute int
	// Format is the artifact file extension, "mp3" when empty.
	Format string
}

// Outcome records what happened to a single chunk.
type Outcome struct {
	Index    int    `json:"index"`
	Artifact string `json:"artifact,omitempty"`
	Seconds  int    `json:"seconds"`
	Err      string `json:"error,omitempty"`
}

func (o Outcome) OK() bool { return o.Artifact != "" && o.Err == "" }

type ChunkError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// Result aggregates outcomes in chunk order.
type Result struct {
	Artifacts    []string
	TotalSeconds int
	Errors       []ChunkError
	Outcomes     []Outcome
}

type Orchestrator struct {
	provider tts.Provider
	store    storage.ArtifactStore
	cfg      Config
	logger   *slog.Logger
	tracer   trace.Tracer
	chunks   metric.Int64Counter
	latency  metric.Float64Histogram
}

func NewOrchestrator(provider tts.Provider, store storage.ArtifactStore, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.WordsPerMinute <= 0 {
		cfg.WordsPerMinute = segment.DefaultWordsPerMinute
	}
	if cfg.Format == "" {
		cfg.Format = "mp3"
	}
	o := &Orchestrator{
		provider: provider,
		store:    store,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "synthesis")),
		tracer:   otel.Tracer(instrumentationName),
	}
	if err := o.initMetrics(); err != nil {
		o.logger.Warn("failed to initialize metrics", slogError(err))
	}
	return o
}

func (o *Orchestrator) initMetrics() error {
	meter := otel.Meter(instrumentationName)
	chunks, err := meter.Int64Counter("narrate.synthesis.chunks",
		metric.WithDescription("Chunks processed by the synthesis orchestrator"))
	if err != nil {
		return err
	}
	latency, err := meter.Float64Histogram("narrate.synthesis.latency",
		metric.WithDescription("Provider request latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return err
	}
	o.chunks = chunks
	o.latency = latency
	return nil
}

// ArtifactKey names the artifact for chunk index under outputLocation.
func ArtifactKey(outputLocation string, index int, format string) string {
	return fmt.Sprintf("%s/chunk_%04d.%s", outputLocation, index, format)
}

// Synthesize requests audio for every chunk and stores each success under
// outputLocation. Failed chunks are reported in Result.Errors. When ctx is
// cancelled the partial result is returned together with ctx's error.
func (o *Orchestrator) Synthesize(ctx context.Context, chunks []segment.Chunk, outputLocation string, opts tts.Options) (Result, error) {
	ctx, span := o.tracer.Start(ctx, "synth.Synthesize", trace.WithAttributes(
		attribute.Int("chunks", len(chunks)),
		attribute.Int("workers", o.cfg.Workers),
	))
	defer span.End()

	slots := make([]Outcome, len(chunks))
	done := make([]bool, len(chunks))
	limit := rate.Inf
	if o.cfg.Pacing > 0 {
		limit = rate.Every(o.cfg.Pacing)
	}
	limiter := rate.NewLimiter(limit, 1)

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := min(o.cfg.Workers, max(len(chunks), 1))
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := limiter.Wait(ctx); err != nil {
					slots[idx] = Outcome{Index: chunks[idx].Index, Err: "not attempted: " + err.Error()}
					o.record(ctx, "skipped")
				} else {
					slots[idx] = o.synthesizeChunk(ctx, chunks[idx], outputLocation, opts)
				}
				done[idx] = true
			}
		}()
	}

issue:
	for i := range chunks {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break issue
		}
	}
	close(jobs)
	wg.Wait()

	result := Result{Outcomes: slots}
	for i := range slots {
		if !done[i] {
			slots[i] = Outcome{Index: chunks[i].Index, Err: "not attempted: " + ctx.Err().Error()}
			o.record(ctx, "skipped")
		}
		out := slots[i]
		if out.OK() {
			result.Artifacts = append(result.Artifacts, out.Artifact)
			result.TotalSeconds += out.Seconds
			continue
		}
		result.Errors = append(result.Errors, ChunkError{Index: out.Index, Message: out.Err})
	}

	span.SetAttributes(
		attribute.Int("artifacts", len(result.Artifacts)),
		attribute.Int("failures", len(result.Errors)),
	)

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "cancelled")
		o.logger.Warn("synthesis interrupted",
			slog.Int("completed", len(result.Artifacts)),
			slog.Int("total", len(chunks)))
		return result, fmt.Errorf("synthesis interrupted: %w", err)
	}
	if len(result.Artifacts) == 0 {
		span.SetStatus(codes.Error, ErrNoArtifactsProduced.Error())
		return result, ErrNoArtifactsProduced
	}
	o.logger.Info("synthesis complete",
		slog.Int("artifacts", len(result.Artifacts)),
		slog.Int("failures", len(result.Errors)),
		slog.Int("seconds", result.TotalSeconds))
	return result, nil
}

func (o *Orchestrator) synthesizeChunk(ctx context.Context, chunk segment.Chunk, outputLocation string, opts tts.Options) Outcome {
	out := Outcome{Index: chunk.Index}

	start := time.Now()
	audio, err := o.provider.Synthesize(ctx, chunk.Content, opts)
	if o.latency != nil {
		o.latency.Record(ctx, float64(time.Since(start).Microseconds())/1000)
	}
	if err != nil {
		o.logger.Warn("chunk synthesis failed", slog.Int("chunk", chunk.Index), slogError(err))
		out.Err = err.Error()
		o.record(ctx, "provider_error")
		return out
	}

	ref, err := o.store.Put(ctx, ArtifactKey(outputLocation, chunk.Index, o.cfg.Format), audio)
	if err != nil {
		o.logger.Warn("chunk storage failed", slog.Int("chunk", chunk.Index), slogError(err))
		out.Err = fmt.Sprintf("store chunk %d: %v", chunk.Index, err)
		o.record(ctx, "storage_error")
		return out
	}

	out.Artifact = ref
	out.Seconds = segment.EstimateSeconds(chunk.Content, o.cfg.WordsPerMinute)
	o.record(ctx, "ok")
	o.logger.Debug("chunk synthesized", slog.Int("chunk", chunk.Index), slog.Int("bytes", len(audio)))
	return out
}

func (o *Orchestrator) record(ctx context.Context, outcome string) {
	if o.chunks == nil {
		return
	}
	o.chunks.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
