package ecs

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/prometheus/client_golang/prometheus"
)

// RunnerConfig holds the tunable parameters for a runner. The zero value is
// usable; sensible defaults are applied by withDefaults.
type RunnerConfig struct {
	// Log is the Logger used by the runner and handed to systems. If nil,
	// Log is set to slog.Default().
	Log *slog.Logger
	// Workers is the number of worker goroutines of the multi-threaded
	// runner. Set to 0 to select a default based on the host's CPU count.
	// The single-threaded runner ignores it.
	Workers int
	// TickDeadline is the soft per-tick deadline. Once it passes, the
	// runner stops starting systems, finishes the ones in flight, logs and
	// returns. Zero disables the deadline.
	TickDeadline time.Duration
	// TargetTPS is the target ticks-per-second rate. The runner warns that
	// it cannot keep up when its averaged rate falls below 95% of it. Zero
	// disables the warning.
	TargetTPS float64
	// Metrics is the Prometheus registry runner metrics are registered
	// with. If nil, metrics are disabled and the tick path does not pay
	// for them.
	Metrics *prometheus.Registry
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	return c
}

// UserConfig is the user-facing runner configuration. It may be serialised to
// a TOML file and converted to a RunnerConfig by calling UserConfig.Config().
type UserConfig struct {
	Runner struct {
		// Workers is the worker goroutine count of the multi-threaded
		// runner. Set to 0 to automatically select a reasonable default
		// based on the host's CPU count.
		Workers int
		// TickDeadlineMillis is the soft per-tick deadline in
		// milliseconds. Set to 0 to disable the deadline.
		TickDeadlineMillis int
		// TargetTPS is the target ticks-per-second rate. The runner warns
		// that it cannot keep up when its averaged rate falls below 95% of
		// it. Set to 0 to disable the warning.
		TargetTPS float64
	}
}

// DefaultUserConfig returns the default user configuration.
func DefaultUserConfig() UserConfig {
	c := UserConfig{}
	c.Runner.Workers = 0
	c.Runner.TickDeadlineMillis = 0
	c.Runner.TargetTPS = 0
	return c
}

// Config converts a UserConfig to a RunnerConfig.
func (uc UserConfig) Config(log *slog.Logger) RunnerConfig {
	return RunnerConfig{
		Log:          log,
		Workers:      uc.Runner.Workers,
		TickDeadline: time.Duration(uc.Runner.TickDeadlineMillis) * time.Millisecond,
		TargetTPS:    uc.Runner.TargetTPS,
	}
}

// ReadUserConfig reads a UserConfig from the TOML file at path. If the file
// does not exist yet, it is created holding the default configuration.
func ReadUserConfig(path string) (UserConfig, error) {
	c := DefaultUserConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := WriteUserConfig(path, c); err != nil {
			return c, err
		}
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

// WriteUserConfig writes a UserConfig to the TOML file at path.
func WriteUserConfig(path string, c UserConfig) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
