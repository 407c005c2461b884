package observability

import "log/slog"

// AppMode distinguishes the process shape the indexer is running in, so
// logs and trace resources can be attributed correctly.
type AppMode string

const (
	// ModeCLI is a one-shot `indexer index` invocation.
	ModeCLI AppMode = "cli"
	// ModeWorker is a long-running `indexer index --watch` process.
	ModeWorker AppMode = "worker"
)

// defaultShutdownTimeoutSec bounds how long Shutdown waits for exporters
// to flush before giving up.
const defaultShutdownTimeoutSec = 5

// Config configures Init. Zero value is usable: OTLPEndpoint empty means
// no-op tracer/meter providers with zero export overhead.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Mode           AppMode

	OTLPEndpoint string
	OTLPInsecure bool
	OTLPHeaders  map[string]string

	// DebugTrace forces AlwaysSample and emits span-processor warnings to stderr.
	DebugTrace bool
	// TraceVerbose disables the hot-path span/tracer suppression layer; the
	// attribute-filtering span processor stays installed.
	TraceVerbose bool
	// SampleRatio is used by the TraceIDRatio sampler when set and no
	// OTEL_TRACES_SAMPLER env var is present.
	SampleRatio float64

	LogLevel slog.Level
	LogJSON  bool

	ShutdownTimeoutSec int
}

// DefaultConfig returns a Config with sensible defaults for a one-shot
// indexer CLI invocation: no OTLP export, text logging at info level.
func DefaultConfig() Config {
	return Config{
		ServiceName:        "semantic-code-search-indexer",
		Mode:               ModeCLI,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}
