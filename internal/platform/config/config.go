// Package config loads command configuration from the process environment
// and provides the shared fatal-exit path for CLI entry points.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// ParseEnv fills target from environment variables declared in its `env`
// struct tags. target must be a non-nil struct pointer.
func ParseEnv(target any) error {
	if target == nil {
		return fmt.Errorf("config target is required")
	}
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Exitf prints one formatted line to stderr and terminates the process with
// a failure status. Commands use it for errors that precede logging setup,
// such as flag parsing.
func Exitf(format string, args ...any) {
	fmt.Fprintln(os.Stderr, fmt.Sprintf(format, args...))
	os.Exit(1)
}
