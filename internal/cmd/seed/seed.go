// Package seed loads the session catalog fixture into the database.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	entrypoint "github.com/andeanconf/registration/internal/platform/cmd"
	perrors "github.com/andeanconf/registration/internal/platform/errors"
	"github.com/andeanconf/registration/internal/registration/domain"
	"github.com/andeanconf/registration/internal/registration/storage/sqlite"
)

// Config holds seed command configuration.
type Config struct {
	DBPath      string `env:"REGISTRATION_DB_PATH" envDefault:"registration.db"`
	FixturePath string `env:"REGISTRATION_CATALOG_FIXTURE" envDefault:"sessions.json"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the registration database")
	fs.StringVar(&cfg.FixturePath, "fixture", cfg.FixturePath, "Path to the session catalog JSON fixture")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type fixtureSession struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Room      string `json:"room"`
	Title     string `json:"title"`
	Speaker   string `json:"speaker"`
	Country   string `json:"country"`
	Capacity  int    `json:"capacity"`
	Available *bool  `json:"available,omitempty"`
}

// LoadFixture parses and validates a session catalog fixture. Entries that
// omit "available" default to open.
func LoadFixture(path string) ([]domain.Session, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var entries []fixtureSession
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}

	sessions := make([]domain.Session, 0, len(entries))
	for i, entry := range entries {
		available := true
		if entry.Available != nil {
			available = *entry.Available
		}
		session, err := domain.NormalizeSession(domain.Session{
			ID:        entry.ID,
			Date:      entry.Date,
			Time:      entry.Time,
			Room:      entry.Room,
			Title:     entry.Title,
			Speaker:   entry.Speaker,
			Country:   entry.Country,
			Capacity:  entry.Capacity,
			Available: available,
		})
		if err != nil {
			return nil, sessionError(i, err)
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// sessionError attaches the catalog error code for one invalid fixture entry.
func sessionError(index int, err error) error {
	message := fmt.Sprintf("fixture entry %d: %v", index, err)
	switch {
	case errors.Is(err, domain.ErrEmptySessionID):
		return perrors.Wrap(perrors.CodeSessionEmptyID, message, err)
	case errors.Is(err, domain.ErrEmptySchedule):
		return perrors.Wrap(perrors.CodeSessionInvalidSchedule, message, err)
	case errors.Is(err, domain.ErrInvalidCapacity):
		return perrors.Wrap(perrors.CodeSessionInvalidCapacity, message, err)
	default:
		return perrors.Wrap(perrors.CodeUnknown, message, err)
	}
}

// Run upserts every fixture session into the catalog. Re-seeding preserves
// the occupied counters of existing sessions.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSeed, func(ctx context.Context) error {
		sessions, err := LoadFixture(cfg.FixturePath)
		if err != nil {
			return err
		}

		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		for _, session := range sessions {
			if err := store.PutSession(ctx, session); err != nil {
				return fmt.Errorf("seed session %s: %w", session.ID, err)
			}
		}
		log.Printf("catalog seeded db=%s sessions=%d", cfg.DBPath, len(sessions))
		return nil
	})
}
