package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/loqalabs/loqa-narrate/internal/config"
	"github.com/loqalabs/loqa-narrate/internal/episode"
	"github.com/loqalabs/loqa-narrate/internal/pipeline"
	"github.com/loqalabs/loqa-narrate/internal/runtime"
	"github.com/loqalabs/loqa-narrate/internal/segment"
	"github.com/loqalabs/loqa-narrate/internal/store"
	"github.com/loqalabs/loqa-narrate/internal/tts"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "expected 'generate', 'chunks' or 'version'")
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "generate":
		err = runGenerate(os.Args[2:], os.Stdout)
	case "chunks":
		err = runChunks(os.Args[2:], os.Stdout)
	case "version":
		fmt.Println(runtime.Version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type generateFlags struct {
	configPath string
	file       string
	title      string
	lang       string
	slow       bool
	maxChars   int
	outDir     string
	verbose    bool
}

func runGenerate(args []string, stdout io.Writer) error {
	var f generateFlags
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	fs.StringVar(&f.configPath, "config", "", "Path to configuration file (defaults when empty)")
	fs.StringVar(&f.file, "file", "", "Text file to narrate")
	fs.StringVar(&f.title, "title", "", "Episode title")
	fs.StringVar(&f.lang, "lang", "", "Language code, overrides tts.lang")
	fs.BoolVar(&f.slow, "slow", false, "Halve the speaking rate")
	fs.IntVar(&f.maxChars, "max-chars", 0, "Chunk budget in characters, overrides segment.max_chunk_chars")
	fs.StringVar(&f.outDir, "out", "", "Audio output directory, overrides synthesis.output_dir")
	fs.BoolVar(&f.verbose, "v", false, "Log progress to stderr")
	_ = fs.Parse(args)

	if f.file == "" {
		return fmt.Errorf("generate: -file is required")
	}
	text, err := os.ReadFile(f.file)
	if err != nil {
		return fmt.Errorf("read %s: %w", f.file, err)
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if f.outDir != "" {
		cfg.Synthesis.OutputDir = f.outDir
	}
	cfg.Synthesis.Storage = "file"

	level := "error"
	if f.verbose {
		level = cfg.Telemetry.LogLevel
	}
	logger := runtime.NewLogger(os.Stderr, level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer repo.Close()

	artifacts, err := runtime.NewArtifactStore(cfg.Synthesis, nil)
	if err != nil {
		return err
	}
	provider, err := tts.New(ctx, cfg.TTS, logger)
	if err != nil {
		return err
	}
	if closer, ok := provider.(io.Closer); ok {
		defer closer.Close()
	}

	gen := runtime.NewGenerator(cfg, provider, artifacts, pipeline.Deps{Episodes: repo}, logger)
	resp, err := gen.Generate(ctx, pipeline.Request{
		Text:          string(text),
		Title:         f.title,
		Lang:          f.lang,
		Slow:          f.slow,
		MaxChunkChars: f.maxChars,
	})
	if err != nil {
		return fmt.Errorf("generate (%s): %w", pipeline.ErrorKind(err), err)
	}
	return writeJSON(stdout, pipeline.ToProtocol(resp))
}

// runChunks prints the chapter plan for a file without synthesizing audio.
func runChunks(args []string, stdout io.Writer) error {
	var (
		file      string
		maxChars  int
		splitLong bool
		wpm       int
	)
	fs := flag.NewFlagSet("chunks", flag.ExitOnError)
	fs.StringVar(&file, "file", "", "Text file to segment")
	fs.IntVar(&maxChars, "max-chars", segment.DefaultMaxChars, "Chunk budget in characters")
	fs.BoolVar(&splitLong, "split-long-words", false, "Hard-split words longer than the budget")
	fs.IntVar(&wpm, "wpm", segment.DefaultWordsPerMinute, "Reading rate in words per minute")
	_ = fs.Parse(args)

	if file == "" {
		return fmt.Errorf("chunks: -file is required")
	}
	text, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	if err := episode.ValidateText(string(text), 0); err != nil {
		return err
	}

	chunks := segment.Packer{MaxChars: maxChars, SplitLongWords: splitLong}.Pack(string(text))
	return writeJSON(stdout, episode.BuildChapters(chunks, wpm))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
