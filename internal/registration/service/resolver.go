package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andeanconf/registration/internal/registration/domain"
	"github.com/andeanconf/registration/internal/registration/storage"
)

// Mode reports whether a registration call found an existing identity.
type Mode string

const (
	// ModeNew indicates the email had no registrant row at resolve time.
	ModeNew Mode = "new"
	// ModeExisting indicates the email matched an existing registrant.
	ModeExisting Mode = "existing"
)

// IdentityResolver maps a correlation key (email) to an existing or new
// registrant. Resolution is a pure read; creation happens at persist time.
type IdentityResolver struct {
	registrants storage.RegistrantStore
	clock       func() time.Time
	newID       func() (string, error)
}

// NewIdentityResolver wires a resolver over the registrant store. The
// clock and id generator default to the production implementations.
func NewIdentityResolver(registrants storage.RegistrantStore, clock func() time.Time, newID func() (string, error)) *IdentityResolver {
	return &IdentityResolver{
		registrants: registrants,
		clock:       clock,
		newID:       newID,
	}
}

// Resolve returns the registrant identified by the contact's email: the
// existing row with its current selections, or a freshly constructed
// registrant with an empty selection set.
func (r *IdentityResolver) Resolve(ctx context.Context, contact domain.CreateRegistrantInput) (domain.Registrant, Mode, error) {
	if r == nil || r.registrants == nil {
		return domain.Registrant{}, "", fmt.Errorf("registrant store is not configured")
	}

	normalized, err := domain.NormalizeCreateRegistrantInput(contact)
	if err != nil {
		return domain.Registrant{}, "", err
	}

	existing, err := r.registrants.GetRegistrantByEmail(ctx, normalized.Email)
	if err == nil {
		return existing, ModeExisting, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return domain.Registrant{}, "", fmt.Errorf("find registrant by email: %w", err)
	}

	created, err := domain.CreateRegistrant(normalized, r.clock, r.newID)
	if err != nil {
		return domain.Registrant{}, "", err
	}
	return created, ModeNew, nil
}
