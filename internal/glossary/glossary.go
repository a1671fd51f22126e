// Package glossary implements the user glossary: an ordered list of
// substitution rules that rewrite dictated text.
//
// Each [Rule] maps a spoken or typed term to its replacement. [Store.Process]
// applies every rule in insertion order as a global, case-insensitive,
// whole-word replacement, feeding each rule's output into the next. A match
// counts as a whole word when the runes directly before and after it are not
// word runes (letters, marks, digits, underscore), so keys that end in
// punctuation such as "dr." still match before a space.
//
// The rule list is persisted as a JSON array under one key of a [kv.Store]
// and reloaded when a Store is constructed. Storage failures never reach the
// dictation flow: unreadable state loads as an empty glossary, failed saves
// keep the in-memory rules, and a rule whose key cannot be compiled is
// skipped while the remaining rules still apply.
package glossary

import "strings"

// DefaultKey is the storage key used when no [WithKey] option is given.
const DefaultKey = "glossary"

// Rule is a single from → to substitution.
type Rule struct {
	// From is the match key, lowercased and trimmed.
	From string `json:"from"`

	// To is the literal replacement text, trimmed. It may be empty for rules
	// restored from storage, which deletes matched terms.
	To string `json:"to"`
}

// NewRule normalises from and to into a Rule. ok is false when either value
// is empty after trimming.
func NewRule(from, to string) (r Rule, ok bool) {
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" || to == "" {
		return Rule{}, false
	}
	return Rule{From: strings.ToLower(from), To: to}, true
}

// Listener is notified with the full current rule list after every
// successful [Store.Add] or [Store.Remove]. The slice is a copy owned by the
// listener.
type Listener func(rules []Rule)
