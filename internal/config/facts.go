package config

// positive constrains types eligible for skip-on-zero override application.
type positive interface {
	~int | ~int64
}

// applyPositive sets *dst = value when value is positive. Zero values are
// skipped, leaving whatever the config file or environment already set.
func applyPositive[T positive](dst *T, value T) {
	if value > 0 {
		*dst = value
	}
}

// applyNonEmpty sets *dst = value when value is non-empty.
func applyNonEmpty(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// ApplyOverrides merges non-zero fields from overrides onto c, in place.
// Zero values mean "not set on the command line" and are skipped so the
// value already loaded from config file / environment survives. This is
// how cmd/indexer layers CLI flags on top of LoadConfig's result without a
// flag library that distinguishes "unset" from "explicitly zero".
func (c *Config) ApplyOverrides(overrides Config) {
	applyPositive(&c.Pipeline.CPUCores, overrides.Pipeline.CPUCores)
	applyPositive(&c.Pipeline.BatchSize, overrides.Pipeline.BatchSize)
	applyPositive(&c.Pipeline.MaxQueueSize, overrides.Pipeline.MaxQueueSize)
	applyPositive(&c.Pipeline.MaxChunkSizeBytes, overrides.Pipeline.MaxChunkSizeBytes)

	applyNonEmpty(&c.Queue.Dir, overrides.Queue.Dir)
	applyNonEmpty(&c.Queue.BaseDir, overrides.Queue.BaseDir)

	applyNonEmpty(&c.Backend.Endpoint, overrides.Backend.Endpoint)
	applyNonEmpty(&c.Backend.CloudID, overrides.Backend.CloudID)
	applyNonEmpty(&c.Backend.APIKey, overrides.Backend.APIKey)
	applyNonEmpty(&c.Backend.Username, overrides.Backend.Username)
	applyNonEmpty(&c.Backend.Password, overrides.Backend.Password)

	if len(overrides.Languages) > 0 {
		c.Languages = overrides.Languages
	}

	if overrides.Worker.PollingInterval > 0 {
		c.Worker.PollingInterval = overrides.Worker.PollingInterval
	}

	if overrides.Worker.StaleTimeout > 0 {
		c.Worker.StaleTimeout = overrides.Worker.StaleTimeout
	}

	applyPositive(&c.Worker.MaxRetries, overrides.Worker.MaxRetries)
}
