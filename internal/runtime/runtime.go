package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loqalabs/loqa-narrate/internal/bus"
	"github.com/loqalabs/loqa-narrate/internal/config"
	"github.com/loqalabs/loqa-narrate/internal/natsserver"
	"github.com/loqalabs/loqa-narrate/internal/pipeline"
	"github.com/loqalabs/loqa-narrate/internal/storage"
	"github.com/loqalabs/loqa-narrate/internal/store"
	"github.com/loqalabs/loqa-narrate/internal/synth"
	"github.com/loqalabs/loqa-narrate/internal/tts"
)

// Version is stamped at build time with -ldflags "-X".
var Version = "0.1.0-dev"

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	natsServer  *natsserver.EmbeddedServer
	bus         *bus.Client
	store       *store.Store
	provider    tts.Provider
	service     *pipeline.Service
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry
	defer r.shutdown()

	if err := r.startServices(ctx); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricHandler != nil {
		mux.Handle("/metrics", metricHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	if r.cfg.Store.RetentionDays > 0 {
		r.wg.Add(1)
		go r.runPrune(ctx)
	}

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	return nil
}

func (r *Runtime) startServices(ctx context.Context) error {
	ns, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("start embedded nats: %w", err)
	}
	r.natsServer = ns

	busCfg := r.cfg.Bus
	if ns != nil {
		busCfg.Servers = []string{ns.ClientURL()}
	}
	r.bus, err = bus.Connect(ctx, r.cfg.RuntimeName, busCfg, r.logger)
	if err != nil {
		return err
	}

	r.store, err = store.Open(ctx, r.cfg.Store, r.logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	artifacts, err := NewArtifactStore(r.cfg.Synthesis, r.bus)
	if err != nil {
		return err
	}

	r.provider, err = tts.New(ctx, r.cfg.TTS, r.logger)
	if err != nil {
		return fmt.Errorf("create tts provider: %w", err)
	}

	gen := NewGenerator(r.cfg, r.provider, artifacts, pipeline.Deps{
		Documents: r.store,
		Episodes:  r.store,
		Events:    pipeline.NewBusEvents(r.bus.Conn()),
	}, r.logger)

	timeout := time.Duration(r.cfg.Synthesis.RequestTimeoutMS) * time.Millisecond
	r.service = pipeline.NewService(ctx, r.bus, gen, r.store, timeout, r.logger)
	if err := r.service.Start(); err != nil {
		return err
	}
	return nil
}

// NewArtifactStore opens the artifact backend selected by cfg.Storage.
// busClient is only required for the nats backend.
func NewArtifactStore(cfg config.SynthesisConfig, busClient *bus.Client) (storage.ArtifactStore, error) {
	switch cfg.Storage {
	case "nats":
		if busClient == nil {
			return nil, errors.New("nats artifact storage requires a bus connection")
		}
		return storage.NewObjectStore(busClient.JetStream(), cfg.Bucket)
	default:
		return storage.NewFileStore(cfg.OutputDir)
	}
}

// NewGenerator wires a generator from configuration. deps.Synthesizer is
// replaced by an orchestrator over provider and artifacts.
func NewGenerator(cfg config.Config, provider tts.Provider, artifacts storage.ArtifactStore, deps pipeline.Deps, logger *slog.Logger) *pipeline.Generator {
	deps.Synthesizer = synth.NewOrchestrator(provider, artifacts, synth.Config{
		Workers:        cfg.Synthesis.Workers,
		Pacing:         time.Duration(cfg.Synthesis.PacingMS) * time.Millisecond,
		WordsPerMinute: cfg.Segment.WordsPerMinute,
		Format:         cfg.Synthesis.Format,
	}, logger)
	return pipeline.NewGenerator(pipeline.Config{
		MaxChunkChars:  cfg.Segment.MaxChunkChars,
		SplitLongWords: cfg.Segment.SplitLongWords,
		WordsPerMinute: cfg.Segment.WordsPerMinute,
		MaxTextChars:   cfg.Segment.MaxTextChars,
		Lang:           cfg.TTS.Lang,
		Slow:           cfg.TTS.Slow,
		Host:           cfg.TTS.Endpoint,
	}, deps, logger)
}

func (r *Runtime) runPrune(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.store.Prune(ctx); err != nil {
				r.logger.Warn("store prune failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (r *Runtime) shutdown() {
	if r.service != nil {
		r.service.Close()
	}
	if closer, ok := r.provider.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			r.logger.Warn("tts provider close error", slog.String("error", err.Error()))
		}
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Warn("store close error", slog.String("error", err.Error()))
		}
	}
	r.bus.Close()
	r.natsServer.Shutdown()

	if r.tracerClose != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.tracerClose(ctx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	if r.ready.Load() && r.bus.Healthy() && r.service.Healthy() && r.store.Ping(ctx) == nil && checkProvider(ctx, r.provider) == nil {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// checkProvider probes providers that expose a health endpoint.
func checkProvider(ctx context.Context, provider tts.Provider) error {
	hc, ok := provider.(healthChecker)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return hc.HealthCheck(ctx)
}
