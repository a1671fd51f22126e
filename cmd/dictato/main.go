// Command dictato is the dictation correction server. It serves the glossary
// API, transcript correction and AI rewrite over HTTP, and corrects live
// dictation segments over WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/dictato/internal/app"
	"github.com/MrWong99/dictato/internal/config"
	"github.com/MrWong99/dictato/internal/observe"
	"github.com/MrWong99/dictato/pkg/kv"
	"github.com/MrWong99/dictato/pkg/kv/filekv"
	"github.com/MrWong99/dictato/pkg/kv/mock"
	"github.com/MrWong99/dictato/pkg/kv/postgres"
	"github.com/MrWong99/dictato/pkg/provider/llm"
	"github.com/MrWong99/dictato/pkg/provider/llm/anyllm"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (optional)")
	listenAddr := flag.String("listen", "", "override server.listen_addr")
	watchInterval := flag.Duration("watch-interval", 0, "config reload poll interval (0 uses the watcher default)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "dictato: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "dictato: %v\n", err)
		}
		return 1
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("dictato starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"storage", cfg.Storage.Backend,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Registry and providers ────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinStorage(reg)
	registerBuiltinLLMs(reg)

	providers, err := buildProviders(ctx, cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	application, err := app.New(ctx, cfg, providers, app.WithMetricsHandler(tel.MetricsHandler))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	if *configPath != "" {
		var wopts []config.WatcherOption
		if *watchInterval > 0 {
			wopts = append(wopts, config.WithInterval(*watchInterval))
		}
		w, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
			applyReload(level, application, old, new)
		}, wopts...)
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// loadConfig reads path, or returns the defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// applyReload applies the hot-reloadable parts of a changed config and warns
// about the rest.
func applyReload(level *slog.LevelVar, application *app.App, old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged {
		level.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.VocabularyChanged {
		application.ApplyVocabulary(new.Vocabulary)
		slog.Info("vocabulary reloaded", "terms", len(new.Vocabulary.Terms))
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "sections", d.RestartRequired)
	}
}

// ── Providers ─────────────────────────────────────────────────────────────────

// registerBuiltinStorage registers the key/value backends.
func registerBuiltinStorage(reg *config.Registry) {
	reg.RegisterStorage(config.StorageMemory, func(_ context.Context, _ config.StorageConfig) (kv.Store, error) {
		return mock.New(), nil
	})
	reg.RegisterStorage(config.StorageFile, func(_ context.Context, sc config.StorageConfig) (kv.Store, error) {
		s, err := filekv.New(sc.FilePath)
		if err != nil {
			return nil, err
		}
		slog.Debug("file storage opened", "path", s.Path())
		return s, nil
	})
	reg.RegisterStorage(config.StoragePostgres, func(ctx context.Context, sc config.StorageConfig) (kv.Store, error) {
		return postgres.NewStore(ctx, sc.PostgresDSN)
	})
}

// registerBuiltinLLMs registers every any-llm-go backend under its name.
func registerBuiltinLLMs(reg *config.Registry) {
	for _, name := range anyllm.Supported {
		reg.RegisterLLM(name, func(rc config.RewriteConfig) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if rc.APIKey != "" && name != "ollama" {
				opts = append(opts, anyllmlib.WithAPIKey(rc.APIKey))
			}
			if rc.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(rc.BaseURL))
			}
			p, err := anyllm.New(name, rc.Model, opts...)
			if err != nil {
				return nil, err
			}
			slog.Debug("any-llm backend created", "backend", p.Name(), "model", p.Model())
			return p, nil
		})
	}
}

// buildProviders instantiates the storage backend and the optional rewrite
// LLM named in cfg.
func buildProviders(ctx context.Context, cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	store, err := reg.CreateStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("create storage %q: %w", cfg.Storage.Backend, err)
	}
	ps.Storage = store
	slog.Info("storage ready", "backend", cfg.Storage.Backend)

	if cfg.Rewrite.Enabled() {
		p, err := reg.CreateLLM(cfg.Rewrite)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", cfg.Rewrite.Provider, err)
		}
		ps.LLM = p
		slog.Info("provider created", "kind", "llm", "name", cfg.Rewrite.Provider, "model", cfg.Rewrite.Model)
	} else {
		slog.Info("AI rewrite disabled")
	}

	return ps, nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
