// Package pipeline runs a generation request end to end: validation,
// segmentation, synthesis, assembly and persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loqalabs/loqa-narrate/internal/episode"
	"github.com/loqalabs/loqa-narrate/internal/protocol"
	"github.com/loqalabs/loqa-narrate/internal/segment"
	"github.com/loqalabs/loqa-narrate/internal/store"
	"github.com/loqalabs/loqa-narrate/internal/synth"
	"github.com/loqalabs/loqa-narrate/internal/tts"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DocumentSource resolves stored documents referenced by id.
type DocumentSource interface {
	LoadDocument(ctx context.Context, id string) (store.Document, error)
}

// EpisodeRepository persists an assembled episode and returns its record id.
type EpisodeRepository interface {
	SaveEpisode(ctx context.Context, ep episode.Episode) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, chunks []segment.Chunk, outputLocation string, opts tts.Options) (synth.Result, error)
}

// EventPublisher announces persisted episodes. Failures are logged only.
type EventPublisher interface {
	PublishCreated(ctx context.Context, ep episode.Episode, partialErrors int) error
}

type Config struct {
	MaxChunkChars  int
	SplitLongWords bool
	WordsPerMinute int
	// MaxTextChars bounds accepted source text; <= 0 disables the check.
	MaxTextChars int
	Lang         string
	Slow         bool
	// Host is the configured provider endpoint passed to every synthesis call.
	Host string
}

// Deps are the collaborators of a Generator. Documents and Events may be nil.
type Deps struct {
	Documents   DocumentSource
	Episodes    EpisodeRepository
	Synthesizer Synthesizer
	Events      EventPublisher
}

type Request struct {
	Text          string
	DocumentRef   string
	Title         string
	Lang          string
	Slow          bool
	MaxChunkChars int
}

type Response struct {
	EpisodeID            string
	PersistedID          string
	Title                string
	Chapters             []episode.Chapter
	TotalDurationSeconds int
	WordCount            int
	PartialErrors        []synth.ChunkError
}

// PersistenceError reports that a generated episode could not be saved.
type PersistenceError struct {
	EpisodeID string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist episode %s: %v", e.EpisodeID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type Generator struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	tracer trace.Tracer
}

func NewGenerator(cfg Config, deps Deps, logger *slog.Logger) *Generator {
	if cfg.MaxChunkChars <= 0 {
		cfg.MaxChunkChars = segment.DefaultMaxChars
	}
	if cfg.WordsPerMinute <= 0 {
		cfg.WordsPerMinute = segment.DefaultWordsPerMinute
	}
	return &Generator{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With(slog.String("component", "generator")),
		tracer: otel.Tracer("github.com/loqalabs/loqa-narrate/pipeline"),
	}
}

// Generate narrates req into a persisted episode. Chunk failures are returned
// in Response.PartialErrors; a failure to persist is returned as a
// *PersistenceError and the request is not reported as successful.
func (g *Generator) Generate(ctx context.Context, req Request) (Response, error) {
	ctx, span := g.tracer.Start(ctx, "pipeline.Generate")
	defer span.End()

	resp, err := g.generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorKind(err))
	}
	return resp, err
}

func (g *Generator) generate(ctx context.Context, req Request) (Response, error) {
	if err := episode.ValidateSource(req.Text, req.DocumentRef, g.cfg.MaxTextChars); err != nil {
		return Response{}, err
	}

	text, title, source, err := g.resolveSource(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if err := episode.ValidateText(text, g.cfg.MaxTextChars); err != nil {
		return Response{}, err
	}

	packer := segment.Packer{MaxChars: coalesceInt(req.MaxChunkChars, g.cfg.MaxChunkChars), SplitLongWords: g.cfg.SplitLongWords}
	chunks := packer.Pack(text)
	chapters := episode.BuildChapters(chunks, g.cfg.WordsPerMinute)
	id := episode.ID(text)

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("episode.id", id),
		attribute.Int("episode.chunks", len(chunks)),
	)
	g.logger.Info("generating episode",
		slog.String("episode_id", id),
		slog.Int("chunks", len(chunks)),
		slog.String("source", string(source)))

	opts := tts.Options{
		Lang: coalesceString(req.Lang, g.cfg.Lang),
		Slow: req.Slow || g.cfg.Slow,
		Host: g.cfg.Host,
	}
	result, err := g.deps.Synthesizer.Synthesize(ctx, chunks, id, opts)
	if err != nil {
		partial := Response{
			EpisodeID:     id,
			Title:         title,
			Chapters:      episode.AttachArtifacts(chapters, result),
			WordCount:     segment.WordCount(text),
			PartialErrors: result.Errors,
		}
		if errors.Is(err, synth.ErrNoArtifactsProduced) {
			return partial, fmt.Errorf("episode %s: %w", id, err)
		}
		return partial, err
	}

	ep, err := episode.Assemble(episode.Input{
		Text:      text,
		Title:     title,
		Source:    source,
		Chapters:  chapters,
		Synthesis: result,
	})
	if err != nil {
		return Response{}, err
	}

	recordID, err := g.deps.Episodes.SaveEpisode(ctx, ep)
	if err != nil {
		g.logger.Error("failed to persist episode", slog.String("episode_id", id), slogError(err))
		return Response{
			EpisodeID:            id,
			Title:                ep.Title,
			Chapters:             ep.Chapters,
			TotalDurationSeconds: ep.DurationSeconds,
			WordCount:            ep.WordCount,
			PartialErrors:        result.Errors,
		}, &PersistenceError{EpisodeID: id, Err: err}
	}
	ep.PersistedID = recordID

	if g.deps.Events != nil {
		if err := g.deps.Events.PublishCreated(context.WithoutCancel(ctx), ep, len(result.Errors)); err != nil {
			g.logger.Warn("failed to publish episode event", slog.String("episode_id", id), slogError(err))
		}
	}

	g.logger.Info("episode generated",
		slog.String("episode_id", id),
		slog.String("persisted_id", recordID),
		slog.Int("chapters", len(ep.Chapters)),
		slog.Int("partial_errors", len(result.Errors)),
		slog.Int("duration_seconds", ep.DurationSeconds))

	return Response{
		EpisodeID:            ep.ID,
		PersistedID:          recordID,
		Title:                ep.Title,
		Chapters:             ep.Chapters,
		TotalDurationSeconds: ep.DurationSeconds,
		WordCount:            ep.WordCount,
		PartialErrors:        result.Errors,
	}, nil
}

func (g *Generator) resolveSource(ctx context.Context, req Request) (string, string, episode.SourceType, error) {
	if strings.TrimSpace(req.Text) != "" {
		return req.Text, req.Title, episode.SourceText, nil
	}
	if g.deps.Documents == nil {
		return "", "", "", &episode.ValidationError{Field: "document_ref", Message: "stored documents are not available"}
	}
	doc, err := g.deps.Documents.LoadDocument(ctx, req.DocumentRef)
	if errors.Is(err, store.ErrNotFound) {
		return "", "", "", &episode.ValidationError{Field: "document_ref", Message: fmt.Sprintf("document %q not found", req.DocumentRef)}
	}
	if err != nil {
		return "", "", "", fmt.Errorf("load document %s: %w", req.DocumentRef, err)
	}
	return doc.Text, coalesceString(req.Title, doc.Title), episode.SourceDocument, nil
}

// ErrorKind classifies err for reply payloads.
func ErrorKind(err error) string {
	var (
		verr *episode.ValidationError
		perr *PersistenceError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return protocol.ErrorKindValidation
	case errors.Is(err, synth.ErrNoArtifactsProduced):
		return protocol.ErrorKindNoArtifacts
	case errors.As(err, &perr):
		return protocol.ErrorKindPersistence
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return protocol.ErrorKindCancelled
	default:
		return protocol.ErrorKindInternal
	}
}

func coalesceInt(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func coalesceString(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
