// Package app wires the dictato subsystems into a running server.
//
// The App struct owns the full lifecycle: New loads the glossary and builds
// the correction pipeline, Run serves the HTTP API and dictation WebSockets,
// and Shutdown drains connections and releases storage.
//
// For testing, inject doubles through [Providers] (storage, LLM) and the
// functional options. [App.Handler] exposes the routed handler so tests can
// serve it with httptest instead of calling Run.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/dictato/internal/config"
	"github.com/MrWong99/dictato/internal/glossary"
	"github.com/MrWong99/dictato/internal/health"
	"github.com/MrWong99/dictato/internal/observe"
	"github.com/MrWong99/dictato/internal/rewrite"
	"github.com/MrWong99/dictato/internal/transcript"
	"github.com/MrWong99/dictato/internal/transcript/phonetic"
	"github.com/MrWong99/dictato/pkg/kv"
	"github.com/MrWong99/dictato/pkg/provider/llm"
)

const (
	// drainTimeout bounds the HTTP drain started by Run when its context is
	// cancelled.
	drainTimeout = 10 * time.Second

	readHeaderTimeout = 10 * time.Second
)

// Providers holds the external dependencies created by main.go via the
// config registry. A nil Storage keeps the glossary in memory; a nil LLM
// disables the rewrite endpoint.
type Providers struct {
	Storage kv.Store
	LLM     llm.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers Providers

	metrics        *observe.Metrics
	metricsHandler http.Handler

	glossary *glossary.Store
	pipeline atomic.Pointer[transcript.CorrectionPipeline]
	vocabMu  sync.Mutex
	vocab    config.VocabularyConfig
	rewriter *rewrite.Rewriter
	sessions *SessionManager
	health   *health.Handler
	handler  http.Handler
	server   *http.Server

	// glossaryDirty is signalled on every glossary change; pushGlossary
	// broadcasts the latest rules so HTTP handlers never wait on sockets.
	glossaryDirty chan struct{}
	stopPush      chan struct{}

	drainOnce sync.Once
	drainErr  error
	stopOnce  sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithMetrics records all application metrics to m instead of
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler mounts h at /metrics. main.go passes the Prometheus
// handler from [observe.InitProvider]; without it the route is absent.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// New creates an App. It loads the glossary from providers.Storage, builds
// the correction pipeline from cfg.Vocabulary and registers all routes.
// Glossary loading never fails; corrupt or unreadable state starts empty.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	a := &App{cfg: cfg}
	if providers != nil {
		a.providers = *providers
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	a.sessions = NewSessionManager(a.metrics)
	a.glossaryDirty = make(chan struct{}, 1)
	a.stopPush = make(chan struct{})

	a.glossary = glossary.New(ctx, a.providers.Storage,
		glossary.WithKey(cfg.Glossary.StorageKey),
		glossary.WithMetrics(a.metrics),
		glossary.WithListener(a.onGlossaryChange),
	)
	a.ApplyVocabulary(cfg.Vocabulary)

	var rwOpts []rewrite.Option
	if cfg.Rewrite.Temperature > 0 {
		rwOpts = append(rwOpts, rewrite.WithTemperature(cfg.Rewrite.Temperature))
	}
	rwOpts = append(rwOpts, rewrite.WithMetrics(a.metrics))
	a.rewriter = rewrite.New(a.providers.LLM, a.glossary, rwOpts...)

	var checkers []health.Checker
	if p, ok := a.providers.Storage.(kv.Pinger); ok {
		checkers = append(checkers, health.PingChecker("storage", p))
	}
	a.health = health.New(checkers...)

	go a.pushGlossary()

	a.handler = observe.Middleware(a.metrics)(a.routes())
	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	slog.Info("app initialised",
		"glossary_key", a.glossary.Key(),
		"glossary_rules", a.glossary.Len(),
		"vocabulary_terms", len(cfg.Vocabulary.Terms),
		"rewrite", a.rewriter.Enabled(),
	)
	return a, nil
}

// routes builds the request multiplexer.
func (a *App) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/glossary", a.handleListGlossary)
	mux.HandleFunc("POST /api/glossary", a.handleAddGlossary)
	mux.HandleFunc("DELETE /api/glossary/{index}", a.handleRemoveGlossary)
	mux.HandleFunc("POST /api/process", a.handleProcess)
	mux.HandleFunc("POST /api/rewrite", a.handleRewrite)
	mux.HandleFunc("GET /api/sessions", a.handleListSessions)
	mux.HandleFunc("GET /api/vocabulary", a.handleVocabulary)
	mux.HandleFunc("GET /ws/dictation", a.handleDictation)
	a.health.Register(mux)
	if a.metricsHandler != nil {
		mux.Handle("GET /metrics", a.metricsHandler)
	}
	return mux
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Glossary returns the glossary store.
func (a *App) Glossary() *glossary.Store { return a.glossary }

// Sessions returns the dictation session registry.
func (a *App) Sessions() *SessionManager { return a.sessions }

// ApplyVocabulary updates the vocabulary stage from v. When only the terms
// changed they are swapped into the running pipeline; changed thresholds
// rebuild it. It is safe to call while segments are being corrected;
// in-flight corrections finish on the previous vocabulary.
func (a *App) ApplyVocabulary(v config.VocabularyConfig) {
	a.vocabMu.Lock()
	defer a.vocabMu.Unlock()

	if p := a.pipeline.Load(); p != nil && sameMatching(a.vocab, v) {
		p.SetVocabulary(v.Terms)
		a.vocab = v
		slog.Debug("vocabulary terms swapped", "terms", len(p.Vocabulary()))
		return
	}

	opts := []transcript.PipelineOption{
		transcript.WithGlossary(a.glossary),
		transcript.WithMetrics(a.metrics),
		transcript.WithPhoneticMatcher(phonetic.New(
			phonetic.WithPhoneticThreshold(v.PhoneticThreshold),
			phonetic.WithFuzzyThreshold(v.FuzzyThreshold),
		)),
		transcript.WithVocabulary(v.Terms),
	}
	if v.ConfidenceSkip > 0 {
		opts = append(opts, transcript.WithConfidenceSkip(v.ConfidenceSkip))
	}
	a.pipeline.Store(transcript.NewPipeline(opts...))
	a.vocab = v
	slog.Debug("correction pipeline rebuilt", "terms", len(v.Terms))
}

// sameMatching reports whether a and b configure the matcher identically.
func sameMatching(a, b config.VocabularyConfig) bool {
	return a.PhoneticThreshold == b.PhoneticThreshold &&
		a.FuzzyThreshold == b.FuzzyThreshold &&
		a.ConfidenceSkip == b.ConfidenceSkip
}

// Vocabulary returns the terms the correction pipeline currently snaps to.
func (a *App) Vocabulary() []string {
	return a.pipeline.Load().Vocabulary()
}

// onGlossaryChange schedules a push of the rule list to every dictation
// session. It never blocks; changes arriving while a push is pending are
// folded into it.
func (a *App) onGlossaryChange([]glossary.Rule) {
	select {
	case a.glossaryDirty <- struct{}{}:
	default:
	}
}

// pushGlossary broadcasts the current glossary after each change until the
// app drains. It reads the rules at send time so clients always converge on
// the latest list.
func (a *App) pushGlossary() {
	for {
		select {
		case <-a.stopPush:
			return
		case <-a.glossaryDirty:
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		a.sessions.Broadcast(ctx, newGlossaryMessage(a.glossary.Terms()))
		cancel()
	}
}

// Run listens on cfg.Server.ListenAddr and serves until ctx is cancelled or
// the server fails. Cancelling ctx starts a drain bounded by drainTimeout;
// call Shutdown afterwards to release storage.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("app: listen %q: %w", a.server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server listening", "addr", ln.Addr().String())
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		dctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), drainTimeout)
		defer cancel()
		return a.drain(dctx)
	})

	return g.Wait()
}

// drain marks the server not ready, stops the glossary broadcaster, stops
// accepting requests and closes all dictation sessions. Only the first call has an effect.
func (a *App) drain(ctx context.Context) error {
	a.drainOnce.Do(func() {
		a.health.SetDraining(true)
		close(a.stopPush)
		if err := a.server.Shutdown(ctx); err != nil {
			a.drainErr = fmt.Errorf("app: drain http: %w", err)
		}
		a.sessions.CloseAll("server shutting down")
	})
	return a.drainErr
}

// Shutdown drains the HTTP server, closes all dictation sessions and closes
// storage. It respects the context deadline for the HTTP drain.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "sessions", a.sessions.Count())

		if err := a.drain(ctx); err != nil {
			slog.Warn("http drain incomplete", "err", err)
			shutdownErr = err
		}
		if c, ok := a.providers.Storage.(kv.Closer); ok {
			c.Close()
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
