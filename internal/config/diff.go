package config

// ConfigDiff describes what changed between two configs. Only fields that
// can be safely hot-reloaded are tracked; everything else needs a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RetryChanged is true when any retry setting differs.
	RetryChanged bool
	NewRetry     RetryConfig

	// LimitsChanged is true when batch concurrency, language, or diarization
	// differs.
	LimitsChanged bool
	NewLimits     LimitsConfig

	// RestartNeeded is true when a non-hot-reloadable section (providers,
	// discord, storage, server address) differs.
	RestartNeeded bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Retry != new.Retry {
		d.RetryChanged = true
		d.NewRetry = new.Retry
	}

	if old.Limits != new.Limits {
		d.LimitsChanged = true
		d.NewLimits = new.Limits
	}

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		old.Discord != new.Discord ||
		!providersEqual(old.Providers, new.Providers) ||
		old.Storage != new.Storage ||
		old.Files != new.Files ||
		old.Whitelist != new.Whitelist {
		d.RestartNeeded = true
	}

	return d
}

// providersEqual compares provider sections field by field; the Options maps
// are compared shallowly by length and keys.
func providersEqual(a, b ProvidersConfig) bool {
	return entryEqual(a.Transcribe, b.Transcribe) &&
		entryEqual(a.Grammar, b.Grammar) &&
		entryEqual(a.GrammarFallback, b.GrammarFallback)
}

func entryEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	if len(a.Options) != len(b.Options) {
		return false
	}
	for k, v := range a.Options {
		if bv, ok := b.Options[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
