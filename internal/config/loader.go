package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr = ":8080"
	DefaultStorageKey = "glossary"
)

// ValidLLMProviders lists the rewrite provider names known to the built-in
// registry. Used by [Validate] to warn about unrecognised names.
var ValidLLMProviders = []string{
	"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills unset fields of cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageMemory
	}
	if cfg.Glossary.StorageKey == "" {
		cfg.Glossary.StorageKey = DefaultStorageKey
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	switch cfg.Storage.Backend {
	case "", StorageMemory:
	case StorageFile:
		if cfg.Storage.FilePath == "" {
			errs = append(errs, fmt.Errorf("storage.file_path is required when storage.backend is file"))
		}
	case StoragePostgres:
		if cfg.Storage.PostgresDSN == "" {
			errs = append(errs, fmt.Errorf("storage.postgres_dsn is required when storage.backend is postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is invalid; valid values: memory, file, postgres", cfg.Storage.Backend))
	}
	if cfg.Storage.Backend == StorageMemory || cfg.Storage.Backend == "" {
		slog.Warn("storage.backend is memory; the glossary will not survive a restart")
	}

	v := cfg.Vocabulary
	for _, f := range []struct {
		name string
		val  float64
	}{
		{"vocabulary.phonetic_threshold", v.PhoneticThreshold},
		{"vocabulary.fuzzy_threshold", v.FuzzyThreshold},
		{"vocabulary.confidence_skip", v.ConfidenceSkip},
	} {
		if f.val < 0 || f.val > 1 {
			errs = append(errs, fmt.Errorf("%s %.2f is out of range [0, 1]", f.name, f.val))
		}
	}

	rw := cfg.Rewrite
	if rw.Enabled() {
		if rw.Model == "" {
			errs = append(errs, fmt.Errorf("rewrite.model is required when rewrite.provider is set"))
		}
		if !slices.Contains(ValidLLMProviders, rw.Provider) {
			slog.Warn("unknown rewrite provider name, may be a typo or third-party provider",
				"name", rw.Provider,
				"known", ValidLLMProviders,
			)
		}
	}
	if rw.Temperature < 0 || rw.Temperature > 2 {
		errs = append(errs, fmt.Errorf("rewrite.temperature %.2f is out of range [0, 2]", rw.Temperature))
	}

	return errors.Join(errs...)
}
