package config_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/dictato/internal/config"
	"github.com/MrWong99/dictato/pkg/kv"
	"github.com/MrWong99/dictato/pkg/kv/mock"
	"github.com/MrWong99/dictato/pkg/provider/llm"
	llmmock "github.com/MrWong99/dictato/pkg/provider/llm/mock"
)

const sampleYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
  allowed_origins:
    - "*.example.com"

storage:
  backend: file
  file_path: /var/lib/dictato/glossary.json

glossary:
  storage_key: user.glossary

vocabulary:
  terms:
    - Kubernetes
    - Tribunal de Justiça
  phonetic_threshold: 0.75
  fuzzy_threshold: 0.9
  confidence_skip: 0.85

rewrite:
  provider: openai
  api_key: sk-test
  model: gpt-4o-mini
  temperature: 0.3
`

func TestLoadFromReader_Full(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log_level = %q", cfg.Server.LogLevel)
	}
	if !slices.Equal(cfg.Server.AllowedOrigins, []string{"*.example.com"}) {
		t.Errorf("allowed_origins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Storage.Backend != config.StorageFile || cfg.Storage.FilePath != "/var/lib/dictato/glossary.json" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Glossary.StorageKey != "user.glossary" {
		t.Errorf("storage_key = %q", cfg.Glossary.StorageKey)
	}
	if len(cfg.Vocabulary.Terms) != 2 || cfg.Vocabulary.Terms[1] != "Tribunal de Justiça" {
		t.Errorf("terms = %v", cfg.Vocabulary.Terms)
	}
	if cfg.Vocabulary.PhoneticThreshold != 0.75 || cfg.Vocabulary.FuzzyThreshold != 0.9 || cfg.Vocabulary.ConfidenceSkip != 0.85 {
		t.Errorf("vocabulary thresholds = %+v", cfg.Vocabulary)
	}
	if !cfg.Rewrite.Enabled() || cfg.Rewrite.Model != "gpt-4o-mini" || cfg.Rewrite.Temperature != 0.3 {
		t.Errorf("rewrite = %+v", cfg.Rewrite)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()

	for _, doc := range []string{"", "server: {}\n"} {
		cfg, err := config.LoadFromReader(strings.NewReader(doc))
		if err != nil {
			t.Fatalf("LoadFromReader(%q): %v", doc, err)
		}
		if cfg.Server.ListenAddr != config.DefaultListenAddr {
			t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
		}
		if cfg.Server.LogLevel != config.LogInfo {
			t.Errorf("log_level = %q", cfg.Server.LogLevel)
		}
		if cfg.Storage.Backend != config.StorageMemory {
			t.Errorf("backend = %q", cfg.Storage.Backend)
		}
		if cfg.Glossary.StorageKey != config.DefaultStorageKey {
			t.Errorf("storage_key = %q", cfg.Glossary.StorageKey)
		}
		if cfg.Rewrite.Enabled() {
			t.Error("rewrite enabled by default")
		}
	}

	if got := config.Default(); got.Storage.Backend != config.StorageMemory {
		t.Errorf("Default().Storage.Backend = %q", got.Storage.Backend)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("server:\n  listen_adress: \":1\"\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := config.Load("/nonexistent/dictato.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"valid default", func(*config.Config) {}, ""},
		{"bad log level", func(c *config.Config) { c.Server.LogLevel = "verbose" }, "server.log_level"},
		{"bad backend", func(c *config.Config) { c.Storage.Backend = "redis" }, "storage.backend"},
		{"file without path", func(c *config.Config) { c.Storage.Backend = config.StorageFile }, "storage.file_path"},
		{"postgres without dsn", func(c *config.Config) { c.Storage.Backend = config.StoragePostgres }, "storage.postgres_dsn"},
		{"threshold above one", func(c *config.Config) { c.Vocabulary.FuzzyThreshold = 1.5 }, "vocabulary.fuzzy_threshold"},
		{"negative confidence skip", func(c *config.Config) { c.Vocabulary.ConfidenceSkip = -0.1 }, "vocabulary.confidence_skip"},
		{"rewrite without model", func(c *config.Config) { c.Rewrite.Provider = "openai" }, "rewrite.model"},
		{"temperature out of range", func(c *config.Config) { c.Rewrite.Temperature = 3 }, "rewrite.temperature"},
		{"unknown provider only warns", func(c *config.Config) {
			c.Rewrite.Provider = "my-gateway"
			c.Rewrite.Model = "m"
		}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			tc.mutate(cfg)
			err := config.Validate(cfg)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: unexpected error %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate error = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Server.LogLevel = "loud"
	cfg.Storage.Backend = config.StorageFile
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"server.log_level", "storage.file_path"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestRegistry_Storage(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	store := mock.New()
	var got config.StorageConfig
	reg.RegisterStorage(config.StorageMemory, func(_ context.Context, cfg config.StorageConfig) (kv.Store, error) {
		got = cfg
		return store, nil
	})

	s, err := reg.CreateStorage(context.Background(), config.StorageConfig{Backend: config.StorageMemory})
	if err != nil {
		t.Fatalf("CreateStorage: %v", err)
	}
	if s != store || got.Backend != config.StorageMemory {
		t.Error("factory not used")
	}

	_, err = reg.CreateStorage(context.Background(), config.StorageConfig{Backend: config.StoragePostgres})
	if !errors.Is(err, config.ErrBackendNotRegistered) {
		t.Errorf("error = %v, want ErrBackendNotRegistered", err)
	}
}

func TestRegistry_LLM(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	provider := &llmmock.Provider{}
	reg.RegisterLLM("openai", func(cfg config.RewriteConfig) (llm.Provider, error) {
		if cfg.Model != "gpt-4o-mini" {
			t.Errorf("model = %q", cfg.Model)
		}
		return provider, nil
	})

	p, err := reg.CreateLLM(config.RewriteConfig{Provider: "openai", Model: "gpt-4o-mini"})
	if err != nil || p != provider {
		t.Fatalf("CreateLLM = (%v, %v)", p, err)
	}

	if _, err := reg.CreateLLM(config.RewriteConfig{Provider: "anthropic"}); !errors.Is(err, config.ErrBackendNotRegistered) {
		t.Errorf("error = %v, want ErrBackendNotRegistered", err)
	}
}

func TestRegistry_FactoryErrorPropagates(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	boom := errors.New("connect refused")
	reg.RegisterStorage(config.StoragePostgres, func(context.Context, config.StorageConfig) (kv.Store, error) {
		return nil, boom
	})
	if _, err := reg.CreateStorage(context.Background(), config.StorageConfig{Backend: config.StoragePostgres}); !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
}
