// Package registrar parses registrar command flags and starts the
// registration runtime.
package registrar

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	entrypoint "github.com/andeanconf/registration/internal/platform/cmd"
	"github.com/andeanconf/registration/internal/registration/auditor"
	"github.com/andeanconf/registration/internal/registration/storage/sqlite"
)

// Config holds registrar command configuration.
type Config struct {
	DBPath        string        `env:"REGISTRATION_DB_PATH" envDefault:"registration.db"`
	AuditInterval time.Duration `env:"REGISTRATION_AUDIT_INTERVAL" envDefault:"10m"`
	AuditRepair   bool          `env:"REGISTRATION_AUDIT_REPAIR"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the registration database")
	fs.DurationVar(&cfg.AuditInterval, "audit-interval", cfg.AuditInterval, "Interval between reconciliation passes")
	fs.BoolVar(&cfg.AuditRepair, "audit-repair", cfg.AuditRepair, "Write derived values back when a pass finds drift")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run opens the store and keeps the periodic reconciliation auditor
// running until the context is canceled.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRegistrar, func(ctx context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		log.Printf("registrar started db=%s audit_interval=%s repair=%t",
			cfg.DBPath, cfg.AuditInterval, cfg.AuditRepair)

		err = auditor.New(store, nil).Run(ctx, cfg.AuditInterval, cfg.AuditRepair)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}
