// Package auditor reconciles the denormalized registration state against
// the booking truth table. The selected-sessions cache and the occupied
// counters are both derivable from bookings; the auditor reports drift and
// can write the derived values back.
package auditor

import (
	"context"
	"fmt"
	"log"
	"reflect"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/andeanconf/registration/internal/registration/domain"
	"github.com/andeanconf/registration/internal/registration/storage"
)

// Store is the persistence surface the auditor needs: the aggregate reads
// and corrective writes, plus the session catalog listing.
type Store interface {
	storage.AuditStore
	ListSessions(ctx context.Context) ([]domain.Session, error)
}

// CacheDrift is one registrant whose selected-sessions cache disagrees
// with the booking table.
type CacheDrift struct {
	RegistrantID string
	Cached       []string
	Truth        []string
}

// OccupancyDrift is one session whose occupied counter disagrees with the
// number of booking rows.
type OccupancyDrift struct {
	SessionID string
	Occupied  int
	Booked    int
}

// DuplicatePhone is one phone number shared by multiple registrant rows.
// Phones are advisory contact data, so duplicates are reported, never
// repaired.
type DuplicatePhone struct {
	Phone         string
	RegistrantIDs []string
}

// Report is the outcome of one reconciliation pass.
type Report struct {
	GeneratedAt        time.Time
	CheckedRegistrants int
	CheckedSessions    int
	CacheDrift         []CacheDrift
	OccupancyDrift     []OccupancyDrift
	DuplicatePhones    []DuplicatePhone
}

// Clean reports whether the pass found no repairable drift.
func (r Report) Clean() bool {
	return len(r.CacheDrift) == 0 && len(r.OccupancyDrift) == 0
}

// Auditor runs reconciliation passes over one store.
type Auditor struct {
	store  Store
	clock  func() time.Time
	tracer trace.Tracer
}

// New creates an auditor. The clock defaults to time.Now.
func New(store Store, clock func() time.Time) *Auditor {
	if clock == nil {
		clock = time.Now
	}
	return &Auditor{
		store:  store,
		clock:  clock,
		tracer: otel.Tracer("registration/auditor"),
	}
}

// Audit compares every registrant's cache and every session's occupied
// counter against the booking table. The pass is read-only.
//
// The comparison is not transactional with respect to in-flight
// registrations, so a busy system can show transient drift. Run audits in
// a quiet window, or treat a single observation as advisory.
func (a *Auditor) Audit(ctx context.Context) (Report, error) {
	if a == nil || a.store == nil {
		return Report{}, fmt.Errorf("audit store is not configured")
	}
	ctx, span := a.tracer.Start(ctx, "auditor.Audit")
	defer span.End()

	report := Report{GeneratedAt: a.clock().UTC()}

	registrants, err := a.store.ListRegistrants(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list registrants: %w", err)
	}
	truth, err := a.store.ListBookingSessionIDs(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list booking session ids: %w", err)
	}

	report.CheckedRegistrants = len(registrants)
	phones := make(map[string][]string)
	for _, registrant := range registrants {
		if registrant.Phone != "" {
			phones[registrant.Phone] = append(phones[registrant.Phone], registrant.ID)
		}

		cached := sortedCopy(registrant.SelectedSessions)
		booked := sortedCopy(truth[registrant.ID])
		if !equalIDs(cached, booked) {
			report.CacheDrift = append(report.CacheDrift, CacheDrift{
				RegistrantID: registrant.ID,
				Cached:       cached,
				Truth:        booked,
			})
		}
	}

	sessions, err := a.store.ListSessions(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list sessions: %w", err)
	}
	counts, err := a.store.ListBookingCounts(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list booking counts: %w", err)
	}
	report.CheckedSessions = len(sessions)
	for _, session := range sessions {
		if booked := counts[session.ID]; session.Occupied != booked {
			report.OccupancyDrift = append(report.OccupancyDrift, OccupancyDrift{
				SessionID: session.ID,
				Occupied:  session.Occupied,
				Booked:    booked,
			})
		}
	}

	for phone, ids := range phones {
		if len(ids) < 2 {
			continue
		}
		sort.Strings(ids)
		report.DuplicatePhones = append(report.DuplicatePhones, DuplicatePhone{
			Phone:         phone,
			RegistrantIDs: ids,
		})
	}
	sort.Slice(report.DuplicatePhones, func(i, j int) bool {
		return report.DuplicatePhones[i].Phone < report.DuplicatePhones[j].Phone
	})

	span.SetAttributes(
		attribute.Int("audit.cache_drift", len(report.CacheDrift)),
		attribute.Int("audit.occupancy_drift", len(report.OccupancyDrift)),
	)
	return report, nil
}

// Repair writes the booking-derived values back for every drift in the
// report: the selected-sessions cache and the occupied counters. Duplicate
// phones are left alone.
func (a *Auditor) Repair(ctx context.Context, report Report) error {
	if a == nil || a.store == nil {
		return fmt.Errorf("audit store is not configured")
	}
	ctx, span := a.tracer.Start(ctx, "auditor.Repair")
	defer span.End()

	for _, drift := range report.CacheDrift {
		if err := a.store.RewriteSelectedSessions(ctx, drift.RegistrantID, drift.Truth); err != nil {
			return fmt.Errorf("rewrite selections for %s: %w", drift.RegistrantID, err)
		}
		log.Printf("audit repaired cache registrant_id=%s sessions=%d", drift.RegistrantID, len(drift.Truth))
	}
	for _, drift := range report.OccupancyDrift {
		if err := a.store.SetSessionOccupied(ctx, drift.SessionID, drift.Booked); err != nil {
			return fmt.Errorf("set occupied for %s: %w", drift.SessionID, err)
		}
		log.Printf("audit repaired occupancy session_id=%s occupied=%d", drift.SessionID, drift.Booked)
	}
	return nil
}

// Run audits on a fixed interval until the context is canceled. When
// repair is set, each pass writes the derived values back for any drift it
// found.
func (a *Auditor) Run(ctx context.Context, interval time.Duration, repair bool) error {
	if interval <= 0 {
		return fmt.Errorf("audit interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		report, err := a.Audit(ctx)
		if err != nil {
			log.Printf("audit pass failed error=%v", err)
			continue
		}
		log.Printf(
			"audit pass registrants=%d sessions=%d cache_drift=%d occupancy_drift=%d duplicate_phones=%d",
			report.CheckedRegistrants,
			report.CheckedSessions,
			len(report.CacheDrift),
			len(report.OccupancyDrift),
			len(report.DuplicatePhones),
		)
		if repair && !report.Clean() {
			if err := a.Repair(ctx, report); err != nil {
				log.Printf("audit repair failed error=%v", err)
			}
		}
	}
}

func sortedCopy(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}
