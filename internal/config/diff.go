package config

import "slices"

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// VocabularyChanged is set when terms or matching thresholds changed.
	// Applied without restart.
	VocabularyChanged bool

	// RestartRequired names the sections that changed but are only read at
	// startup (server.listen_addr, server.allowed_origins, storage, glossary,
	// rewrite).
	RestartRequired []string
}

// HasChanges reports whether anything differs.
func (d ConfigDiff) HasChanges() bool {
	return d.LogLevelChanged || d.VocabularyChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	ov, nv := old.Vocabulary, new.Vocabulary
	if !slices.Equal(ov.Terms, nv.Terms) ||
		ov.PhoneticThreshold != nv.PhoneticThreshold ||
		ov.FuzzyThreshold != nv.FuzzyThreshold ||
		ov.ConfidenceSkip != nv.ConfidenceSkip {
		d.VocabularyChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if !slices.Equal(old.Server.AllowedOrigins, new.Server.AllowedOrigins) {
		d.RestartRequired = append(d.RestartRequired, "server.allowed_origins")
	}
	if old.Storage != new.Storage {
		d.RestartRequired = append(d.RestartRequired, "storage")
	}
	if old.Glossary != new.Glossary {
		d.RestartRequired = append(d.RestartRequired, "glossary")
	}
	if old.Rewrite != new.Rewrite {
		d.RestartRequired = append(d.RestartRequired, "rewrite")
	}

	return d
}
