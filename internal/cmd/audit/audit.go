// Package audit runs a one-shot reconciliation pass over the database.
package audit

import (
	"context"
	"flag"
	"fmt"
	"log"

	entrypoint "github.com/andeanconf/registration/internal/platform/cmd"
	"github.com/andeanconf/registration/internal/registration/auditor"
	"github.com/andeanconf/registration/internal/registration/storage/sqlite"
)

// Config holds audit command configuration.
type Config struct {
	DBPath string `env:"REGISTRATION_DB_PATH" envDefault:"registration.db"`
	Repair bool   `env:"REGISTRATION_AUDIT_REPAIR"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the registration database")
	fs.BoolVar(&cfg.Repair, "repair", cfg.Repair, "Write derived values back for any drift found")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run audits once and optionally repairs. Unrepaired drift is an error so
// scripted runs fail visibly.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceAudit, func(ctx context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		reconciler := auditor.New(store, nil)
		report, err := reconciler.Audit(ctx)
		if err != nil {
			return err
		}

		for _, drift := range report.CacheDrift {
			log.Printf("cache drift registrant_id=%s cached=%v truth=%v",
				drift.RegistrantID, drift.Cached, drift.Truth)
		}
		for _, drift := range report.OccupancyDrift {
			log.Printf("occupancy drift session_id=%s occupied=%d booked=%d",
				drift.SessionID, drift.Occupied, drift.Booked)
		}
		for _, duplicate := range report.DuplicatePhones {
			log.Printf("duplicate phone phone=%s registrant_ids=%v",
				duplicate.Phone, duplicate.RegistrantIDs)
		}
		log.Printf("audit done registrants=%d sessions=%d cache_drift=%d occupancy_drift=%d duplicate_phones=%d",
			report.CheckedRegistrants,
			report.CheckedSessions,
			len(report.CacheDrift),
			len(report.OccupancyDrift),
			len(report.DuplicatePhones),
		)

		if report.Clean() {
			return nil
		}
		if !cfg.Repair {
			return fmt.Errorf("found %d cache and %d occupancy drifts; rerun with -repair to fix",
				len(report.CacheDrift), len(report.OccupancyDrift))
		}
		return reconciler.Repair(ctx, report)
	})
}
