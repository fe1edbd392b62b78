package syncplus

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type config struct {
	name       string
	generated  bool
	logger     *slog.Logger
	warnAfter  time.Duration
	verbose    bool
	callerInfo bool
	mode       Mode
}

// Option configures a context at construction.
type Option func(*config)

// WithName names the context. Named contexts are added to the global
// registry and show up in DumpAll until closed.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithLogger sets the logger for warnings and verbose records.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithWarnAfter logs a warning whenever a request waits, or a holder holds,
// longer than d. Zero disables the warnings. The default comes from
// SYNCPLUS_WARN_AFTER.
func WithWarnAfter(d time.Duration) Option {
	return func(c *config) { c.warnAfter = d }
}

// WithVerbose logs a debug record for every request, grant and release.
func WithVerbose(v bool) Option {
	return func(c *config) { c.verbose = v }
}

// WithCallerInfo records the requesting call site on every request.
// It walks the stack on each acquisition, so leave it off in hot paths.
func WithCallerInfo(v bool) Option {
	return func(c *config) { c.callerInfo = v }
}

// WithMode sets the initial policy of an RW. Other contexts ignore it.
func WithMode(m Mode) Option {
	return func(c *config) { c.mode = m }
}

func newConfig(kind Kind, opts []Option) *config {
	cfg := &config{
		warnAfter: GetDurationEnvOrDefault(EnvWarnAfter, 0),
		mode:      Fair,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.name == "" {
		cfg.name = kind.String() + "-" + uuid.NewString()[:8]
		cfg.generated = true
	}
	return cfg
}
