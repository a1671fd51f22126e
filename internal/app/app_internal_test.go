package app

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/dictato/internal/config"
	"github.com/MrWong99/dictato/internal/observe"
)

func newInternalApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader())))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	a, err := New(context.Background(), cfg, nil, WithMetrics(m))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Shutdown(context.Background()) })
	return a
}

func TestApplyVocabulary_TermsOnlyKeepsPipeline(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	a := newInternalApp(t, cfg)
	before := a.pipeline.Load()

	v := cfg.Vocabulary
	v.Terms = []string{"Kubernetes"}
	a.ApplyVocabulary(v)
	if a.pipeline.Load() != before {
		t.Error("terms-only change rebuilt the pipeline")
	}
	if got := a.Vocabulary(); len(got) != 1 || got[0] != "Kubernetes" {
		t.Errorf("Vocabulary() = %q", got)
	}

	v.FuzzyThreshold = 0.95
	a.ApplyVocabulary(v)
	if a.pipeline.Load() == before {
		t.Error("threshold change kept the old pipeline")
	}
	if got := a.Vocabulary(); len(got) != 1 || got[0] != "Kubernetes" {
		t.Errorf("Vocabulary() after rebuild = %q", got)
	}
}

func TestGlossaryChange_DoesNotWaitForSessions(t *testing.T) {
	t.Parallel()

	a := newInternalApp(t, config.Default())

	// A broadcast in progress holds the session registry; stall it there.
	a.sessions.mu.Lock()
	locked := true
	defer func() {
		if locked {
			a.sessions.mu.Unlock()
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx := context.Background()
		for _, from := range []string{"k8s", "gh", "tf"} {
			a.glossary.Add(ctx, from, "x")
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("glossary mutations blocked on the session broadcast")
	}
	if n := a.glossary.Len(); n != 3 {
		t.Errorf("rules = %d, want 3", n)
	}

	a.sessions.mu.Unlock()
	locked = false
}
