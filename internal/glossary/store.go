package glossary

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/dictato/internal/observe"
	"github.com/MrWong99/dictato/pkg/kv"
	"github.com/MrWong99/dictato/pkg/kv/mock"
)

// Option is a functional option for configuring a [Store].
type Option func(*Store)

// WithKey sets the storage key the glossary is persisted under.
// Default: [DefaultKey].
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithListener registers l to be called after every successful mutation.
func WithListener(l Listener) Option {
	return func(s *Store) {
		s.listener = l
	}
}

// WithMetrics records glossary metrics to m instead of
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the logger used for storage and pattern warnings.
// Default: [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// compiledRule pairs a rule with its matcher, or with the error that
// prevented compiling one.
type compiledRule struct {
	Rule
	m   *matcher
	err error
}

// Store owns the ordered glossary rules. All changes go through [Store.Add]
// and [Store.Remove] so that every change is persisted and announced.
//
// Store is safe for concurrent use. Process calls run concurrently with each
// other; mutations are serialised. The listener is invoked outside the lock,
// so it may call back into the Store. Listeners of concurrent mutations may
// observe notifications out of order.
type Store struct {
	kv       kv.Store
	key      string
	listener Listener
	metrics  *observe.Metrics
	log      *slog.Logger

	mu    sync.RWMutex
	rules []compiledRule
}

// New constructs a Store backed by store and loads the persisted rules.
// Construction never fails: unreadable or corrupt state is logged and the
// glossary starts empty. A nil store keeps rules in memory only.
func New(ctx context.Context, store kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:  store,
		key: DefaultKey,
		log: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.kv == nil {
		s.log.Debug("glossary: no storage configured, keeping rules in memory")
		s.kv = mock.New()
	}

	s.rules = s.compile(s.load(ctx))
	s.metrics.GlossaryRules.Add(ctx, int64(len(s.rules)))
	return s
}

// Key returns the storage key the glossary is persisted under.
func (s *Store) Key() string { return s.key }

// load reads the persisted rules. Every failure degrades to an empty list.
func (s *Store) load(ctx context.Context) []Rule {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.log.Warn("glossary: failed to read stored rules, starting empty", "key", s.key, "err", err)
		s.metrics.RecordPersistenceError(ctx, "load")
		return nil
	}
	if !ok {
		return nil
	}
	rules, err := Decode(raw)
	if err != nil {
		s.log.Warn("glossary: stored rules are corrupt, starting empty", "key", s.key, "err", err)
		s.metrics.RecordPersistenceError(ctx, "load")
		return nil
	}
	s.log.Debug("glossary: loaded rules", "key", s.key, "count", len(rules))
	return rules
}

// save persists rules. The caller must hold s.mu.
func (s *Store) save(ctx context.Context) error {
	raw, err := Encode(s.plainLocked())
	if err == nil {
		err = s.kv.Set(ctx, s.key, raw)
	}
	if err != nil {
		s.log.Error("glossary: failed to save rules, keeping in-memory state", "key", s.key, "err", err)
		s.metrics.RecordPersistenceError(ctx, "save")
		return fmt.Errorf("glossary: save: %w", err)
	}
	return nil
}

// compile builds the matcher for each rule. Rules whose key fails to compile
// are kept with their error so they persist unchanged and are skipped by
// Process.
func (s *Store) compile(rules []Rule) []compiledRule {
	out := make([]compiledRule, len(rules))
	for i, r := range rules {
		m, err := compileKey(r.From)
		out[i] = compiledRule{Rule: r, m: m, err: err}
	}
	return out
}

// Add appends the rule from → to and persists the glossary. from is
// lowercased; both values are trimmed. When either is empty after trimming
// the call does nothing and returns nil.
//
// Duplicate keys are allowed and apply in order. The rule stays in memory
// even when saving fails; the returned error only reports that persistence
// is behind. The listener is notified in both cases.
func (s *Store) Add(ctx context.Context, from, to string) error {
	r, ok := NewRule(from, to)
	if !ok {
		return nil
	}
	m, cerr := compileKey(r.From)

	s.mu.Lock()
	s.rules = append(s.rules, compiledRule{Rule: r, m: m, err: cerr})
	err := s.save(ctx)
	snapshot := s.plainLocked()
	s.mu.Unlock()

	s.metrics.GlossaryRules.Add(ctx, 1)
	s.notify(snapshot)
	return err
}

// Remove deletes the rule at index and persists the glossary. An index out
// of range is ignored. As with [Store.Add], a failed save is reported but
// does not undo the removal.
func (s *Store) Remove(ctx context.Context, index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.rules) {
		s.mu.Unlock()
		return nil
	}
	s.rules = slices.Delete(s.rules, index, index+1)
	err := s.save(ctx)
	snapshot := s.plainLocked()
	s.mu.Unlock()

	s.metrics.GlossaryRules.Add(ctx, -1)
	s.notify(snapshot)
	return err
}

// Terms returns a copy of the current rules in application order.
func (s *Store) Terms() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plainLocked()
}

// Len returns the number of rules.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}

// Process applies every rule to text in insertion order and returns the
// result. Each rule sees the output of the previous one. Empty input is
// returned unchanged. Rules whose key cannot be compiled are skipped with a
// warning.
//
// Process does not modify the Store. Because rules compose, applying Process
// to its own output may change the text again.
func (s *Store) Process(text string) string {
	if text == "" {
		return text
	}
	ctx := context.Background()
	start := time.Now()

	var substitutions, skips int64

	s.mu.RLock()
	for i, r := range s.rules {
		if r.err != nil {
			s.log.Warn("glossary: skipping rule with invalid match key", "index", i, "from", r.From, "err", r.err)
			skips++
			continue
		}
		out, n := r.m.replaceAll(text, r.To)
		if n > 0 {
			substitutions += int64(n)
			text = out
		}
	}
	s.mu.RUnlock()

	if substitutions > 0 {
		s.metrics.Substitutions.Add(ctx, substitutions)
	}
	if skips > 0 {
		s.metrics.RuleSkips.Add(ctx, skips)
	}
	s.metrics.ProcessDuration.Record(ctx, time.Since(start).Seconds())
	return text
}

// plainLocked copies the rules without their matchers. The caller must hold
// s.mu.
func (s *Store) plainLocked() []Rule {
	out := make([]Rule, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.Rule
	}
	return out
}

func (s *Store) notify(rules []Rule) {
	if s.listener != nil {
		s.listener(rules)
	}
}
