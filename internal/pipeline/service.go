package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loqalabs/loqa-narrate/internal/bus"
	"github.com/loqalabs/loqa-narrate/internal/protocol"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// DocumentWriter stores documents submitted over the bus.
type DocumentWriter interface {
	PutDocument(ctx context.Context, title, text string) (string, error)
}

// Service answers generation requests arriving on the bus.
type Service struct {
	bus       *bus.Client
	generator *Generator
	documents DocumentWriter
	timeout   time.Duration
	subs      []*nats.Subscription
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	closed    bool
	wg        sync.WaitGroup
	ready     atomic.Bool
	inFlight  atomic.Int64
	logger    *slog.Logger
}

func NewService(parent context.Context, busClient *bus.Client, generator *Generator, documents DocumentWriter, timeout time.Duration, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Service{
		bus:       busClient,
		generator: generator,
		documents: documents,
		timeout:   timeout,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.With(slog.String("component", "narrate-service")),
	}
}

func (s *Service) Start() error {
	conn := s.bus.Conn()
	sub, err := conn.Subscribe(protocol.SubjectEpisodeGenerate, s.handleGenerate)
	if err != nil {
		return fmt.Errorf("subscribe generate requests: %w", err)
	}
	s.subs = append(s.subs, sub)

	if s.documents != nil {
		sub, err = conn.Subscribe(protocol.SubjectDocumentPut, s.handlePutDocument)
		if err != nil {
			return fmt.Errorf("subscribe document uploads: %w", err)
		}
		s.subs = append(s.subs, sub)
	}

	if err := s.initMetrics(); err != nil {
		s.logger.Warn("failed to initialize metrics", slogError(err))
	}
	s.ready.Store(true)
	return nil
}

func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
	s.wg.Wait()
	s.ready.Store(false)
}

// track registers a handler with the wait group unless Close has begun.
func (s *Service) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Service) Healthy() bool {
	return s.ready.Load()
}

func (s *Service) initMetrics() error {
	meter := otel.Meter("github.com/loqalabs/loqa-narrate/pipeline")
	gauge, err := meter.Int64ObservableGauge("narrate.requests.in_flight",
		metric.WithDescription("Generation requests currently being processed"))
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		obs.ObserveInt64(gauge, s.inFlight.Load())
		return nil
	}, gauge)
	return err
}

func (s *Service) handleGenerate(msg *nats.Msg) {
	var req protocol.GenerateRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode generate request", slogError(err))
		s.respond(msg, protocol.GenerateReply{Error: "malformed request: " + err.Error(), ErrorKind: protocol.ErrorKindValidation})
		return
	}

	if !s.track() {
		s.respond(msg, protocol.GenerateReply{
			Error:     "service is shutting down",
			ErrorKind: protocol.ErrorKindCancelled,
			TraceID:   req.TraceID,
		})
		return
	}
	s.inFlight.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Add(-1)
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()

		start := time.Now()
		resp, err := s.generator.Generate(ctx, Request{
			Text:          req.Text,
			DocumentRef:   req.DocumentRef,
			Title:         req.Title,
			Lang:          req.Lang,
			Slow:          req.Slow,
			MaxChunkChars: req.MaxChunkChars,
		})
		reply := protocol.GenerateReply{TraceID: req.TraceID}
		if err != nil {
			reply.Error = err.Error()
			reply.ErrorKind = ErrorKind(err)
			if resp.EpisodeID != "" {
				reply.Episode = ToProtocol(resp)
			}
			s.logger.Warn("generation failed",
				slog.String("kind", reply.ErrorKind),
				slog.String("trace_id", req.TraceID),
				slogError(err))
		} else {
			reply.OK = true
			reply.Episode = ToProtocol(resp)
			s.logger.Info("generation complete",
				slog.String("episode_id", resp.EpisodeID),
				slog.Duration("latency", time.Since(start)))
		}
		s.respond(msg, reply)
	}()
}

func (s *Service) handlePutDocument(msg *nats.Msg) {
	var req protocol.PutDocumentRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.respond(msg, protocol.PutDocumentReply{Error: "malformed request: " + err.Error()})
		return
	}
	if !s.track() {
		s.respond(msg, protocol.PutDocumentReply{Error: "service is shutting down"})
		return
	}
	defer s.wg.Done()
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()

	id, err := s.documents.PutDocument(ctx, req.Title, req.Text)
	if err != nil {
		s.logger.Warn("failed to store document", slogError(err))
		s.respond(msg, protocol.PutDocumentReply{Error: err.Error()})
		return
	}
	s.respond(msg, protocol.PutDocumentReply{OK: true, DocumentID: id})
}

func (s *Service) respond(msg *nats.Msg, reply any) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		s.logger.Warn("failed to encode reply", slogError(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to send reply", slogError(err))
	}
}
